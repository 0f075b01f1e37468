package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrLabelNotFound     = apperrors.New(apperrors.KindNotFound, "errors.label.notFound")
	ErrInvalidLabelColor = apperrors.New(apperrors.KindBadRequest, "errors.label.invalidColor")
	ErrInvalidLabelName  = apperrors.New(apperrors.KindBadRequest, "errors.label.invalidName")
)

// fanOut writes one translation row per configured language. A label is
// entered in a single language and shown under the same text everywhere
// until someone translates it.
func (m *Manager) fanOut(name, description string) []store.Translation {
	out := make([]store.Translation, 0, len(m.languages))
	for _, lang := range m.languages {
		out = append(out, store.Translation{Locale: lang, Name: name, Description: description})
	}
	return out
}

func checkLabel(in LabelInput) (LabelInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.ValidateName(in.Name); err != nil {
		return in, ErrInvalidLabelName
	}
	if err := validation.ValidateColor(in.Color); err != nil {
		return in, ErrInvalidLabelColor.WithDetails(in.Color)
	}
	return in, nil
}

func (m *Manager) insertLabel(ctx context.Context, q store.Queries, projectID uuid.UUID, kind store.LabelKind, in LabelInput) (*store.Label, error) {
	in, err := checkLabel(in)
	if err != nil {
		return nil, err
	}
	l := &store.Label{
		Kind:         kind,
		ProjectID:    projectID,
		Color:        in.Color,
		Active:       in.active(),
		Translations: m.fanOut(in.Name, in.Description),
	}
	if err := q.Labels().Insert(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return l, nil
}

func (m *Manager) rewriteLabel(ctx context.Context, q store.Queries, l *store.Label, in LabelInput) error {
	in, err := checkLabel(in)
	if err != nil {
		return err
	}
	l.Color = in.Color
	if in.Active != nil {
		l.Active = *in.Active
	}
	l.Translations = m.fanOut(in.Name, in.Description)
	if err := q.Labels().Update(ctx, l); err != nil {
		return fmt.Errorf("failed to update %s: %w", l.Kind, err)
	}
	return nil
}

func (m *Manager) createLabels(ctx context.Context, q store.Queries, projectID uuid.UUID, kind store.LabelKind, inputs []LabelInput) error {
	for _, in := range inputs {
		if _, err := m.insertLabel(ctx, q, projectID, kind, in); err != nil {
			return err
		}
	}
	return nil
}

// syncLabels makes the project's labels of one kind match inputs: rows with
// a known id are rewritten, rows without an id are created and existing
// rows that are not listed are deleted.
func (m *Manager) syncLabels(ctx context.Context, q store.Queries, projectID uuid.UUID, kind store.LabelKind, inputs []LabelInput) error {
	existing, err := q.Labels().ListByProject(ctx, kind, projectID)
	if err != nil {
		return fmt.Errorf("failed to list %s labels: %w", kind, err)
	}
	byID := make(map[uuid.UUID]store.Label, len(existing))
	for _, l := range existing {
		byID[l.ID] = l
	}

	keep := make(map[uuid.UUID]bool, len(inputs))
	for _, in := range inputs {
		if in.ID == nil {
			if _, err := m.insertLabel(ctx, q, projectID, kind, in); err != nil {
				return err
			}
			continue
		}
		l, ok := byID[*in.ID]
		if !ok {
			return ErrLabelNotFound.WithDetails(in.ID.String())
		}
		if err := m.rewriteLabel(ctx, q, &l, in); err != nil {
			return err
		}
		keep[l.ID] = true
	}

	for _, l := range existing {
		if keep[l.ID] {
			continue
		}
		if err := q.Labels().Delete(ctx, kind, l.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", kind, err)
		}
	}
	return nil
}

// Category and status management. These use the role gate, so platform
// administrators pass without a membership.

func (m *Manager) labelGate(ctx context.Context, q store.Queries, actor access.Actor, projectID uuid.UUID, kind store.LabelKind) error {
	if !kind.IsValid() {
		return errInvalidRequest.WithDetails(string(kind))
	}
	if _, err := loadProject(ctx, q, projectID); err != nil {
		return err
	}
	return m.evaluator.RequireRole(ctx, q, projectID, actor, roles.CodeManager)
}

func (m *Manager) ListLabels(ctx context.Context, actor access.Actor, projectID uuid.UUID, kind store.LabelKind, locale string) ([]LabelView, error) {
	if err := m.labelGate(ctx, m.st, actor, projectID, kind); err != nil {
		return nil, err
	}
	list, err := m.st.Labels().ListByProject(ctx, kind, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s labels: %w", kind, err)
	}
	locale = m.locale(locale, actor)
	out := make([]LabelView, 0, len(list))
	for _, l := range list {
		out = append(out, newLabelView(l, locale))
	}
	return out, nil
}

func (m *Manager) CreateLabel(ctx context.Context, actor access.Actor, projectID uuid.UUID, kind store.LabelKind, in LabelInput) (*LabelView, error) {
	ctx, span := tracer.Start(ctx, "projects.CreateLabel", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("label.kind", string(kind)),
	))
	defer span.End()

	var out LabelView
	err := m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		if err := m.labelGate(ctx, q, actor, projectID, kind); err != nil {
			return err
		}
		l, err := m.insertLabel(ctx, q, projectID, kind, in)
		if err != nil {
			return err
		}
		m.auditor.RecordLabelChanged(q, projectID, actor.UserID, l.ID, kind, "created")
		out = newLabelView(*l, m.locale("", actor))
		return nil
	})
	if err != nil {
		return nil, failSpan(span, err)
	}
	return &out, nil
}

func (m *Manager) UpdateLabel(ctx context.Context, actor access.Actor, projectID uuid.UUID, kind store.LabelKind, labelID uuid.UUID, in LabelInput) (*LabelView, error) {
	ctx, span := tracer.Start(ctx, "projects.UpdateLabel", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("label.id", labelID.String()),
	))
	defer span.End()

	var out LabelView
	err := m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		if err := m.labelGate(ctx, q, actor, projectID, kind); err != nil {
			return err
		}
		l, err := loadLabel(ctx, q, projectID, kind, labelID)
		if err != nil {
			return err
		}
		if err := m.rewriteLabel(ctx, q, l, in); err != nil {
			return err
		}
		m.auditor.RecordLabelChanged(q, projectID, actor.UserID, l.ID, kind, "updated")
		out = newLabelView(*l, m.locale("", actor))
		return nil
	})
	if err != nil {
		return nil, failSpan(span, err)
	}
	return &out, nil
}

func (m *Manager) DeleteLabel(ctx context.Context, actor access.Actor, projectID uuid.UUID, kind store.LabelKind, labelID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "projects.DeleteLabel", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("label.id", labelID.String()),
	))
	defer span.End()

	err := m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		if err := m.labelGate(ctx, q, actor, projectID, kind); err != nil {
			return err
		}
		if _, err := loadLabel(ctx, q, projectID, kind, labelID); err != nil {
			return err
		}
		if err := q.Labels().Delete(ctx, kind, labelID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", kind, err)
		}
		m.auditor.RecordLabelChanged(q, projectID, actor.UserID, labelID, kind, "deleted")
		return nil
	})
	return failSpan(span, err)
}

// loadLabel returns the label only when it belongs to the project.
func loadLabel(ctx context.Context, q store.Queries, projectID uuid.UUID, kind store.LabelKind, id uuid.UUID) (*store.Label, error) {
	l, err := q.Labels().GetByID(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && l.ProjectID != projectID) {
		return nil, ErrLabelNotFound.WithDetails(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	return l, nil
}
