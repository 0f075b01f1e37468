package roles

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var defaultDefinitions []byte

type translationDef struct {
	Locale      string `yaml:"locale"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type entryDef struct {
	Code         string           `yaml:"code"`
	Translations []translationDef `yaml:"translations"`
	Permissions  []string         `yaml:"permissions"`
	Inactive     bool             `yaml:"inactive"`
}

// Definitions is the seed content for permissions, roles and project types.
type Definitions struct {
	Permissions  []entryDef `yaml:"permissions"`
	Roles        []entryDef `yaml:"roles"`
	ProjectTypes []entryDef `yaml:"projectTypes"`
}

// DefaultDefinitions parses the definitions compiled into the binary.
func DefaultDefinitions() (Definitions, error) {
	return ParseDefinitions(defaultDefinitions)
}

// ParseDefinitions decodes and validates a definitions document. Every role
// permission must be declared in the permissions section.
func ParseDefinitions(data []byte) (Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return Definitions{}, fmt.Errorf("failed to parse role definitions: %w", err)
	}

	known := make(map[string]bool, len(defs.Permissions))
	for _, p := range defs.Permissions {
		if p.Code == "" {
			return Definitions{}, fmt.Errorf("permission without code")
		}
		known[p.Code] = true
	}
	seen := map[string]bool{}
	for _, r := range defs.Roles {
		if r.Code == "" {
			return Definitions{}, fmt.Errorf("role without code")
		}
		if seen[r.Code] {
			return Definitions{}, fmt.Errorf("duplicate role %s", r.Code)
		}
		seen[r.Code] = true
		for _, p := range r.Permissions {
			if !known[p] {
				return Definitions{}, fmt.Errorf("role %s references unknown permission %s", r.Code, p)
			}
		}
	}
	return defs, nil
}

func toTranslations(defs []translationDef) []store.Translation {
	out := make([]store.Translation, 0, len(defs))
	for _, d := range defs {
		out = append(out, store.Translation{Locale: d.Locale, Name: d.Name, Description: d.Description})
	}
	return out
}

// Sync upserts defs in one transaction and drops the permission cache once
// it commits. Running it twice leaves the same rows behind.
func (c *Catalog) Sync(ctx context.Context, st store.Store, defs Definitions) error {
	return st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		for _, p := range defs.Permissions {
			perm := store.Permission{Code: p.Code, Translations: toTranslations(p.Translations)}
			if err := q.Roles().UpsertPermission(ctx, &perm); err != nil {
				return fmt.Errorf("failed to upsert permission %s: %w", p.Code, err)
			}
		}

		for _, r := range defs.Roles {
			role := store.Role{Code: r.Code, Active: !r.Inactive, Translations: toTranslations(r.Translations)}
			if err := q.Roles().Upsert(ctx, &role); err != nil {
				return fmt.Errorf("failed to upsert role %s: %w", r.Code, err)
			}
			if err := q.Roles().SetPermissions(ctx, role.ID, r.Permissions); err != nil {
				return fmt.Errorf("failed to set permissions of %s: %w", r.Code, err)
			}
		}

		for _, t := range defs.ProjectTypes {
			pt := store.ProjectType{Code: t.Code, Translations: toTranslations(t.Translations)}
			if err := q.Projects().UpsertType(ctx, &pt); err != nil {
				return fmt.Errorf("failed to upsert project type %s: %w", t.Code, err)
			}
		}

		q.AfterCommit(func(context.Context) {
			c.Purge()
			log.Info().
				Int("permissions", len(defs.Permissions)).
				Int("roles", len(defs.Roles)).
				Int("project_types", len(defs.ProjectTypes)).
				Msg("Role catalog synchronized")
		})
		return nil
	})
}
