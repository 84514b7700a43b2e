package contexts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mahesh-hegde/explorer/app/common"
)

// Context is a named boolean predicate selecting a subset of the entities of
// one dimension type. Negated selects the complement; it is carried as a flag
// and never folded into Expr so the content hash stays the same.
type Context struct {
	Name          string
	DimensionType string
	Expr          Expr
	Negated       bool
}

// EntitySet is the result of evaluating a context, in the canonical order of
// the dimension type's metadata.
type EntitySet struct {
	IDs    []string `json:"ids"`
	Labels []string `json:"labels"`
}

func (s EntitySet) Len() int {
	return len(s.IDs)
}

// AllOf returns the context selecting every entity of a dimension type.
func AllOf(dimensionType string) Context {
	return Context{Name: "All", DimensionType: dimensionType, Expr: True}
}

// Negate returns c with the negation flag flipped.
func Negate(c Context) Context {
	c.Negated = !c.Negated
	return c
}

// Equal reports whether a and b select the same entities by construction:
// same dimension type, negation and normalized expression. Names are ignored.
func Equal(a, b Context) bool {
	if a.Negated != b.Negated {
		return false
	}
	ca, err1 := a.Canonical()
	cb, err2 := b.Canonical()
	return err1 == nil && err2 == nil && string(ca) == string(cb)
}

type contextJSON struct {
	Name          string          `json:"name"`
	DimensionType string          `json:"dimension_type"`
	Expr          json.RawMessage `json:"expr"`
	Negated       bool            `json:"negated,omitempty"`
}

func (c Context) MarshalJSON() ([]byte, error) {
	expr, err := json.Marshal(MarshalExpr(c.Expr))
	if err != nil {
		return nil, err
	}
	return json.Marshal(contextJSON{
		Name:          c.Name,
		DimensionType: c.DimensionType,
		Expr:          expr,
		Negated:       c.Negated,
	})
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var cj contextJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	var raw any
	if len(cj.Expr) > 0 {
		if err := json.Unmarshal(cj.Expr, &raw); err != nil {
			return fmt.Errorf("invalid context expression: %w", err)
		}
	}
	expr, err := ParseExpr(raw)
	if err != nil {
		return err
	}
	*c = Context{
		Name:          cj.Name,
		DimensionType: cj.DimensionType,
		Expr:          expr,
		Negated:       cj.Negated,
	}
	return nil
}

// Validate checks the fields every context needs.
func (c Context) Validate() error {
	if c.DimensionType == "" {
		return common.NewConfigurationError("context %q has no dimension type", c.Name)
	}
	if c.Expr == nil {
		return common.NewConfigurationError("context %q has no expression", c.Name)
	}
	return nil
}

// Canonical is the addressed part of a context: dimension type and the
// normalized expression, encoded with sorted keys. Neither the name nor the
// negation flag is part of it, so identically defined contexts share a hash.
func (c Context) Canonical() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order, which is what makes this
	// independent of how the expression was built.
	return json.Marshal(map[string]any{
		"dimension_type": c.DimensionType,
		"expr":           MarshalExpr(Normalize(c.Expr)),
	})
}

// Content is what a store keeps under the hash of Canonical: the normalized
// context together with its name. The first name stored for a hash wins.
func (c Context) Content() (hash string, content []byte, err error) {
	canonical, err := c.Canonical()
	if err != nil {
		return "", nil, err
	}
	content, err = json.Marshal(Context{
		Name:          c.Name,
		DimensionType: c.DimensionType,
		Expr:          Normalize(c.Expr),
	})
	if err != nil {
		return "", nil, err
	}
	return HashContent(canonical), content, nil
}

// HashContent is the content address of canonical context bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Hash returns the content address of c.
func (c Context) Hash() (string, error) {
	content, err := c.Canonical()
	if err != nil {
		return "", err
	}
	return HashContent(content), nil
}

// Descriptor is the compact form of a context inside a serialized plot
// configuration: either the context itself (when it is trivial) or a hash
// plus the negation flag.
type Descriptor struct {
	Context *Context `json:"context,omitempty"`
	Hash    string   `json:"hash,omitempty"`
	Negated bool     `json:"negated,omitempty"`
}
