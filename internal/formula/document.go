package formula

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

// namePattern restricts formula names so they are safe file names.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]*$`)

// ValidName reports whether name is an acceptable formula name.
func ValidName(name string) bool {
	return len(name) <= maxNameLength && namePattern.MatchString(name)
}

// Document is the decoded, encoding-independent form of a formula file.
// Lua, YAML, TOML and JSONC formulas all decode into it.
type Document struct {
	Name      string        `yaml:"name" toml:"name" json:"name" validate:"required,formula_name"`
	Desc      string        `yaml:"desc" toml:"desc" json:"desc"`
	Homepage  string        `yaml:"homepage" toml:"homepage" json:"homepage" validate:"omitempty,url"`
	Version   string        `yaml:"version" toml:"version" json:"version" validate:"required"`
	License   string        `yaml:"license" toml:"license" json:"license"`
	PublicKey string        `yaml:"public_key" toml:"public_key" json:"public_key"`
	Artifacts []ArtifactDoc `yaml:"artifacts" toml:"artifacts" json:"artifacts" validate:"required,min=1,max=64,dive"`
}

// ArtifactDoc is one artifacts[] entry. Exactly one of SHA256 and Checksum
// must be set.
type ArtifactDoc struct {
	OS           string      `yaml:"os" toml:"os" json:"os" validate:"required"`
	Arch         string      `yaml:"arch" toml:"arch" json:"arch" validate:"required"`
	URL          string      `yaml:"url" toml:"url" json:"url" validate:"required,url"`
	SHA256       string      `yaml:"sha256" toml:"sha256" json:"sha256" validate:"required_without=Checksum,excluded_with=Checksum"`
	Checksum     string      `yaml:"checksum" toml:"checksum" json:"checksum"`
	SignatureURL string      `yaml:"signature_url" toml:"signature_url" json:"signature_url" validate:"omitempty,url"`
	Install      []ActionDoc `yaml:"install" toml:"install" json:"install" validate:"dive"`
}

// ActionDoc is one install[] entry. Either a shorthand field (bin, libexec,
// share) or Kind plus Source is set.
type ActionDoc struct {
	Bin     string `yaml:"bin" toml:"bin" json:"bin"`
	Libexec string `yaml:"libexec" toml:"libexec" json:"libexec"`
	Share   string `yaml:"share" toml:"share" json:"share"`
	Kind    string `yaml:"kind" toml:"kind" json:"kind" validate:"omitempty,oneof=bin libexec share"`
	Source  string `yaml:"source" toml:"source" json:"source"`
	Target  string `yaml:"target" toml:"target" json:"target"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("formula_name", func(fl validator.FieldLevel) bool {
			return ValidName(fl.Field().String())
		})
	})
	return validate
}

// Validate checks field-level constraints.
func (d *Document) Validate() error {
	if err := getValidator().Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid formula: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid formula: %w", err)
	}
	return nil
}

// Build validates d and turns it into a Formula with a constructed catalog.
func (d *Document) Build() (*Formula, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(d.Artifacts))
	for i, ad := range d.Artifacts {
		key, err := platform.NewKey(ad.OS, ad.Arch)
		if err != nil {
			return nil, fmt.Errorf("artifact %d: %w", i, err)
		}

		raw := ad.Checksum
		if ad.SHA256 != "" {
			raw = string(SHA256) + ":" + ad.SHA256
		}
		sum, err := ParseChecksum(raw)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", key, err)
		}

		actions, err := buildActions(d.Name, ad.Install)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", key, err)
		}

		artifacts = append(artifacts, Artifact{
			Key:          key,
			URL:          ad.URL,
			Checksum:     sum,
			SignatureURL: ad.SignatureURL,
			Install:      actions,
		})
	}

	catalog, err := NewCatalog(artifacts...)
	if err != nil {
		return nil, err
	}

	return &Formula{
		Name:      d.Name,
		Desc:      d.Desc,
		Homepage:  d.Homepage,
		Version:   d.Version,
		License:   d.License,
		PublicKey: d.PublicKey,
		Catalog:   catalog,
	}, nil
}

// buildActions converts install entries. An empty list installs the
// formula's own name into bin, the common case for single-binary releases.
func buildActions(name string, docs []ActionDoc) ([]InstallAction, error) {
	if len(docs) == 0 {
		return []InstallAction{{Kind: ActionBin, Source: name}}, nil
	}

	actions := make([]InstallAction, 0, len(docs))
	for i, doc := range docs {
		var set []InstallAction
		if doc.Bin != "" {
			set = append(set, InstallAction{Kind: ActionBin, Source: doc.Bin, Target: doc.Target})
		}
		if doc.Libexec != "" {
			set = append(set, InstallAction{Kind: ActionLibexec, Source: doc.Libexec, Target: doc.Target})
		}
		if doc.Share != "" {
			set = append(set, InstallAction{Kind: ActionShare, Source: doc.Share, Target: doc.Target})
		}
		if doc.Kind != "" {
			set = append(set, InstallAction{Kind: ActionKind(doc.Kind), Source: doc.Source, Target: doc.Target})
		}
		if len(set) != 1 {
			return nil, fmt.Errorf("install action %d: exactly one of bin, libexec, share or kind must be set", i)
		}
		actions = append(actions, set[0])
	}
	return actions, nil
}
