// Package identity decodes the respondent identity handed over in a start link.
//
// Sources are tried in priority order: plaintext parameters (name, studentId,
// email), the base64 triple (n, s, e), then the legacy token, which is the
// base64url encoding of the payload XOR-ed with a shared key. A source whose
// student id is malformed is discarded as a whole.
package identity

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"majorcompass/internal/logger"
	"majorcompass/internal/model"
)

var studentIDPattern = regexp.MustCompile(`^\d{8,12}$`)

const (
	maxNameLen  = 100
	maxEmailLen = 254
)

// Decoder extracts identities from handoff query parameters
type Decoder struct {
	key []byte
}

// NewDecoder creates a decoder for tokens XOR-ed with key
func NewDecoder(key string) *Decoder {
	return &Decoder{key: []byte(key)}
}

// ValidStudentID reports whether id is 8 to 12 digits
func ValidStudentID(id string) bool {
	return studentIDPattern.MatchString(id)
}

// FromQuery returns the first valid identity in priority order, or nil
func (d *Decoder) FromQuery(q url.Values) *model.Identity {
	if id, ok := normalize(q.Get("name"), q.Get("studentId"), q.Get("email")); ok {
		return id
	}

	if q.Get("n") != "" || q.Get("s") != "" || q.Get("e") != "" {
		name, okN := decodeB64(q.Get("n"))
		sid, okS := decodeB64(q.Get("s"))
		email, okE := decodeB64(q.Get("e"))
		if okN && okS && okE {
			if id, ok := normalize(name, sid, email); ok {
				return id
			}
		}
		logger.Log.Debug("discarding malformed base64 identity")
	}

	if token := q.Get("token"); token != "" {
		if id, ok := d.DecodeToken(token); ok {
			return id
		}
		logger.Log.Debug("discarding malformed identity token", zap.Int("len", len(token)))
	}
	return nil
}

// DecodeToken unpacks a legacy token into an identity
func (d *Decoder) DecodeToken(token string) (*model.Identity, bool) {
	raw, ok := decodeB64URL(token)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	plain := string(d.xor([]byte(raw)))

	if ValidStudentID(plain) {
		return &model.Identity{StudentID: plain}, true
	}

	var payload struct {
		Name      string `json:"name"`
		StudentID string `json:"studentId"`
		Email     string `json:"email"`
	}
	if err := json.Unmarshal([]byte(plain), &payload); err != nil {
		return nil, false
	}
	return normalize(payload.Name, payload.StudentID, payload.Email)
}

// EncodeToken is the inverse of DecodeToken
func (d *Decoder) EncodeToken(payload string) string {
	return base64.RawURLEncoding.EncodeToString(d.xor([]byte(payload)))
}

func (d *Decoder) xor(in []byte) []byte {
	if len(d.key) == 0 {
		return in
	}
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ d.key[i%len(d.key)]
	}
	return out
}

// normalize trims fields, drops an implausible email and rejects a bad student id.
// It returns false when nothing usable remains.
func normalize(name, studentID, email string) (*model.Identity, bool) {
	name = strings.TrimSpace(name)
	studentID = strings.TrimSpace(studentID)
	email = strings.TrimSpace(email)

	if studentID != "" && !ValidStudentID(studentID) {
		return nil, false
	}
	name = truncate(name, maxNameLen)
	if len(email) > maxEmailLen || !strings.Contains(email, "@") {
		email = ""
	}

	id := &model.Identity{Name: name, StudentID: studentID, Email: email}
	if id.Empty() {
		return nil, false
	}
	return id, true
}

func decodeB64(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), true
		}
	}
	return "", false
}

func decodeB64URL(s string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), true
		}
	}
	return "", false
}
