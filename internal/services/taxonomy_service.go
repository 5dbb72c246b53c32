package services

import (
	"context"
	"log/slog"
	"strings"

	"categorizer/internal/amqp"
	"categorizer/internal/core"
	"categorizer/internal/log"
	"categorizer/internal/storage"
)

// TaxonomyService manages tag groups and the tags inside them.
type TaxonomyService struct {
	storage   *storage.SQLiteRepository
	publisher ChangePublisher
}

func NewTaxonomyService(storage *storage.SQLiteRepository, publisher ChangePublisher) *TaxonomyService {
	return &TaxonomyService{storage: storage, publisher: publisher}
}

// CreateTagInput holds the fields of a new tag.
type CreateTagInput struct {
	Name       string
	Color      *string
	TagGroupID *int64
}

func (s *TaxonomyService) CreateGroup(ctx context.Context, name string) (core.TagGroup, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateName("name", name, core.MaxGroupNameLength); err != nil {
		return core.TagGroup{}, err
	}
	group, err := s.storage.CreateTagGroup(ctx, name)
	if err != nil {
		return core.TagGroup{}, withPersistenceMessage(err, "Could not create tag group.")
	}
	slog.InfoContext(ctx, "Tag group created", log.FieldTagGroupID, group.ID, "name", group.Name)
	notify(ctx, s.publisher, amqp.EntityTagGroup, amqp.ActionCreated, group.ID)
	return group, nil
}

func (s *TaxonomyService) ListGroups(ctx context.Context) ([]core.TagGroup, error) {
	return s.storage.ListTagGroups(ctx)
}

func (s *TaxonomyService) GetGroup(ctx context.Context, id int64) (core.TagGroup, error) {
	return s.storage.GetTagGroup(ctx, id)
}

// DeleteGroup removes the group together with its tags.
func (s *TaxonomyService) DeleteGroup(ctx context.Context, id int64) error {
	if err := s.storage.DeleteTagGroup(ctx, id); err != nil {
		return withPersistenceMessage(err, "Could not delete tag group.")
	}
	slog.InfoContext(ctx, "Tag group deleted", log.FieldTagGroupID, id)
	notify(ctx, s.publisher, amqp.EntityTagGroup, amqp.ActionDeleted, id)
	return nil
}

func (s *TaxonomyService) CreateTag(ctx context.Context, in CreateTagInput) (core.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.TagGroupID == nil {
		return core.Tag{}, core.Validationf("Missing 'name' or 'tag_group_id' in request body.")
	}
	if err := core.ValidateName("name", name, core.MaxTagNameLength); err != nil {
		return core.Tag{}, err
	}
	if err := core.ValidateColor(in.Color); err != nil {
		return core.Tag{}, err
	}

	var tag core.Tag
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		if _, err := repo.GetTagGroup(ctx, *in.TagGroupID); err != nil {
			return err
		}
		var err error
		tag, err = repo.CreateTag(ctx, core.Tag{Name: name, Color: in.Color, TagGroupID: *in.TagGroupID})
		return err
	})
	if err != nil {
		return core.Tag{}, withPersistenceMessage(err, "Could not create tag.")
	}

	slog.InfoContext(ctx, "Tag created", log.FieldTagID, tag.ID, "name", tag.Name, log.FieldTagGroupID, tag.TagGroupID)
	notify(ctx, s.publisher, amqp.EntityTag, amqp.ActionCreated, tag.ID)
	return tag, nil
}

// ListTags returns every tag, or only the tags of groupID when it is set.
func (s *TaxonomyService) ListTags(ctx context.Context, groupID *int64) ([]core.Tag, error) {
	return s.storage.ListTags(ctx, groupID)
}

func (s *TaxonomyService) GetTag(ctx context.Context, id int64) (core.Tag, error) {
	return s.storage.GetTag(ctx, id)
}

// DeleteTag removes the tag and its associations. Transactions are kept.
func (s *TaxonomyService) DeleteTag(ctx context.Context, id int64) error {
	if err := s.storage.DeleteTag(ctx, id); err != nil {
		return withPersistenceMessage(err, "Could not delete tag.")
	}
	slog.InfoContext(ctx, "Tag deleted", log.FieldTagID, id)
	notify(ctx, s.publisher, amqp.EntityTag, amqp.ActionDeleted, id)
	return nil
}
