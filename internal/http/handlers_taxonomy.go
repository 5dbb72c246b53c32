package http

import (
	"net/http"
	"strconv"
	"strings"

	"categorizer/internal/log"
	"categorizer/internal/services"
	"categorizer/internal/views"
)

func (s *Server) handleCreateTagGroup(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	name, err := body.text("name")
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	group, err := s.svc.Taxonomy.CreateGroup(r.Context(), deref(name))
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Created().Body(views.GroupRef(group)).Write(w)
}

func (s *Server) handleListTagGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.Taxonomy.ListGroups(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(views.Groups(groups)).Write(w)
}

func (s *Server) handleGetTagGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	group, err := s.svc.Taxonomy.GetGroup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(views.Group(group)).Write(w)
}

func (s *Server) handleDeleteTagGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	group, err := s.svc.Taxonomy.GetGroup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Taxonomy.DeleteGroup(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("TagGroup '%s' and its tags deleted.", group.Name).Write(w)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	var in services.CreateTagInput
	name, err := body.text("name")
	if err == nil {
		in.Name = deref(name)
		in.Color, err = body.text("color")
	}
	if err == nil {
		in.TagGroupID, err = body.id("tag_group_id")
	}
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	tag, err := s.svc.Taxonomy.CreateTag(r.Context(), in)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Created().Body(views.Tag(tag)).Write(w)
}

// handleListTags filters by ?group_id= when it is an integer and ignores it otherwise.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	var groupID *int64
	if v := strings.TrimSpace(r.URL.Query().Get("group_id")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			groupID = &id
		}
	}

	tags, err := s.svc.Taxonomy.ListTags(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(views.Tags(tags)).Write(w)
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	tag, err := s.svc.Taxonomy.GetTag(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(views.Tag(tag)).Write(w)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	tag, err := s.svc.Taxonomy.GetTag(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Taxonomy.DeleteTag(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("Tag '%s' deleted.", tag.Name).Write(w)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
