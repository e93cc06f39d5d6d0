package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"gopkg.in/yaml.v3"

	"majorcompass/internal/model"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Catalog holds the static content of the assessment
type Catalog struct {
	Questions []model.QuestionDefinition
	Items     []model.PrimaryItem
	Clusters  []model.Cluster

	questionIdx map[string]int
	clusterIdx  map[string]int
}

type questionsFile struct {
	Questions []model.QuestionDefinition `yaml:"questions"`
}

type itemsFile struct {
	Items []model.PrimaryItem `yaml:"items"`
}

type clustersFile struct {
	Clusters []model.Cluster `yaml:"clusters"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = LoadFS(dataFS, "data")
	})
	return defaultCat, defaultErr
}

// LoadFS reads supplementary.yaml, itembank.yaml and majors.yaml from dir in fsys
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	var qf questionsFile
	if err := decodeFile(fsys, dir+"/supplementary.yaml", &qf); err != nil {
		return nil, err
	}
	var itf itemsFile
	if err := decodeFile(fsys, dir+"/itembank.yaml", &itf); err != nil {
		return nil, err
	}
	var cf clustersFile
	if err := decodeFile(fsys, dir+"/majors.yaml", &cf); err != nil {
		return nil, err
	}
	return New(qf.Questions, itf.Items, cf.Clusters)
}

func decodeFile(fsys fs.FS, name string, out interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

// New validates and indexes catalog content
func New(questions []model.QuestionDefinition, items []model.PrimaryItem, clusters []model.Cluster) (*Catalog, error) {
	c := &Catalog{
		Questions:   questions,
		Items:       items,
		Clusters:    clusters,
		questionIdx: make(map[string]int, len(questions)),
		clusterIdx:  make(map[string]int, len(clusters)),
	}

	for i := range c.Questions {
		q := &c.Questions[i]
		if q.ID == "" {
			return nil, fmt.Errorf("question %d has no id", i)
		}
		if _, dup := c.questionIdx[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		if q.Type == model.QuestionTypeScale && q.ScaleMin == 0 && q.ScaleMax == 0 {
			q.ScaleMin, q.ScaleMax = 1, 5
		}
		switch q.Type {
		case model.QuestionTypeScale, model.QuestionTypeText:
		case model.QuestionTypeSingle, model.QuestionTypeMulti, model.QuestionTypeRank:
			if len(q.Options) == 0 {
				return nil, fmt.Errorf("question %s has no options", q.ID)
			}
		default:
			return nil, fmt.Errorf("question %s has unknown type %q", q.ID, q.Type)
		}
		// controllers must come first so the filter can resolve in one pass
		if q.Condition != nil {
			if _, ok := c.questionIdx[q.Condition.DependsOn]; !ok {
				return nil, fmt.Errorf("question %s depends on %s which does not precede it", q.ID, q.Condition.DependsOn)
			}
		}
		c.questionIdx[q.ID] = i
	}

	if len(c.Items) == 0 {
		return nil, fmt.Errorf("item bank is empty")
	}
	seen := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if it.ID == "" || seen[it.ID] {
			return nil, fmt.Errorf("item bank has a missing or duplicate id %q", it.ID)
		}
		seen[it.ID] = true
	}

	for i, cl := range c.Clusters {
		if _, dup := c.clusterIdx[cl.ID]; dup {
			return nil, fmt.Errorf("duplicate cluster id %s", cl.ID)
		}
		c.clusterIdx[cl.ID] = i
	}
	return c, nil
}

// Question looks up a supplementary question by id
func (c *Catalog) Question(id string) (*model.QuestionDefinition, bool) {
	i, ok := c.questionIdx[id]
	if !ok {
		return nil, false
	}
	return &c.Questions[i], true
}

// Cluster looks up an interest cluster by id
func (c *Catalog) Cluster(id string) (*model.Cluster, bool) {
	i, ok := c.clusterIdx[id]
	if !ok {
		return nil, false
	}
	return &c.Clusters[i], true
}

// ItemCount returns the size of the item bank
func (c *Catalog) ItemCount() int {
	return len(c.Items)
}

// Active returns the questions active for answers
func (c *Catalog) Active(answers model.AnswerSet) []model.QuestionDefinition {
	return ActiveQuestions(c.Questions, answers)
}
