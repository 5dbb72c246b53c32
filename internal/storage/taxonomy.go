package storage

import (
	"context"
	"database/sql"
	"errors"

	"categorizer/internal/core"
)

func (r *SQLiteRepository) CreateTagGroup(ctx context.Context, name string) (core.TagGroup, error) {
	g, err := r.queries.CreateTagGroup(ctx, name)
	if err != nil {
		if isUniqueViolation(err) {
			return core.TagGroup{}, core.Conflictf("Tag group with name '%s' already exists.", name)
		}
		return core.TagGroup{}, dbError("create tag group", err)
	}
	return core.TagGroup{ID: g.ID, Name: g.Name}, nil
}

// GetTagGroup returns the group with its tags.
func (r *SQLiteRepository) GetTagGroup(ctx context.Context, id int64) (core.TagGroup, error) {
	g, err := r.queries.GetTagGroup(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TagGroup{}, core.NotFoundf("Tag group with id %d not found.", id)
	}
	if err != nil {
		return core.TagGroup{}, dbError("get tag group", err)
	}
	rows, err := r.queries.ListTagsByGroup(ctx, id)
	if err != nil {
		return core.TagGroup{}, dbError("list group tags", err)
	}
	group := core.TagGroup{ID: g.ID, Name: g.Name}
	for _, row := range rows {
		group.Tags = append(group.Tags, tagFromRow(row))
	}
	return group, nil
}

// ListTagGroups returns all groups ordered by name, each with its tags.
func (r *SQLiteRepository) ListTagGroups(ctx context.Context) ([]core.TagGroup, error) {
	groups, err := r.queries.ListTagGroups(ctx)
	if err != nil {
		return nil, dbError("list tag groups", err)
	}
	tags, err := r.queries.ListTags(ctx)
	if err != nil {
		return nil, dbError("list tags", err)
	}

	byGroup := make(map[int64][]core.Tag)
	for _, row := range tags {
		byGroup[row.TagGroupID] = append(byGroup[row.TagGroupID], tagFromRow(row))
	}

	out := make([]core.TagGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, core.TagGroup{ID: g.ID, Name: g.Name, Tags: byGroup[g.ID]})
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteTagGroup(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTagGroup(ctx, id)
	if err != nil {
		return dbError("delete tag group", err)
	}
	if n == 0 {
		return core.NotFoundf("Tag group with id %d not found.", id)
	}
	return nil
}

// CreateTag inserts a tag and returns it with its group attached.
func (r *SQLiteRepository) CreateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	row, err := r.queries.CreateTag(ctx, CreateTagParams{
		Name:       t.Name,
		Color:      nullString(t.Color),
		TagGroupID: t.TagGroupID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.Tag{}, core.Conflictf("Tag with name '%s' already exists in this group.", t.Name)
		}
		return core.Tag{}, dbError("create tag", err)
	}
	return r.GetTag(ctx, row.ID)
}

func (r *SQLiteRepository) GetTag(ctx context.Context, id int64) (core.Tag, error) {
	row, err := r.queries.GetTag(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Tag{}, core.NotFoundf("Tag with id %d not found.", id)
	}
	if err != nil {
		return core.Tag{}, dbError("get tag", err)
	}
	return tagFromRow(row), nil
}

// ListTags returns tags ordered by name, optionally restricted to one group.
func (r *SQLiteRepository) ListTags(ctx context.Context, groupID *int64) ([]core.Tag, error) {
	var (
		rows []TagRow
		err  error
	)
	if groupID != nil {
		rows, err = r.queries.ListTagsByGroup(ctx, *groupID)
	} else {
		rows, err = r.queries.ListTags(ctx)
	}
	if err != nil {
		return nil, dbError("list tags", err)
	}
	tags := make([]core.Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, tagFromRow(row))
	}
	return tags, nil
}

// GetTagsByIDs returns the tags that exist among ids, ordered by id.
func (r *SQLiteRepository) GetTagsByIDs(ctx context.Context, ids []int64) ([]core.Tag, error) {
	rows, err := r.queries.ListTagsByIDs(ctx, ids)
	if err != nil {
		return nil, dbError("get tags by id", err)
	}
	tags := make([]core.Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, tagFromRow(row))
	}
	return tags, nil
}

func (r *SQLiteRepository) DeleteTag(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTag(ctx, id)
	if err != nil {
		return dbError("delete tag", err)
	}
	if n == 0 {
		return core.NotFoundf("Tag with id %d not found.", id)
	}
	return nil
}

func tagFromRow(row TagRow) core.Tag {
	return core.Tag{
		ID:         row.ID,
		Name:       row.Name,
		Color:      stringPtr(row.Color),
		TagGroupID: row.TagGroupID,
		Group:      &core.TagGroup{ID: row.TagGroupID, Name: row.GroupName},
	}
}
