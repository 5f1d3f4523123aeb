// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/research-journey/internal/directory"
	"github.com/pdiddy/research-journey/internal/export"
	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/internal/topic"
	"github.com/pdiddy/research-journey/pkg/types"
)

func sess(c *gin.Context) session.Session {
	return session.FromContext(c.Request.Context())
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (s *Server) me(c *gin.Context) {
	user, err := sess(c).Require()
	if err != nil {
		s.fail(c, err)
		return
	}
	points, err := s.svc.Ledger.Points(c.Request.Context(), user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "points": points.Total})
}

// Projects.

func (s *Server) listProjects(c *gin.Context) {
	ps, err := s.svc.Projects.List(c.Request.Context(), sess(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (s *Server) createProject(c *gin.Context) {
	var np project.NewProject
	if !s.bind(c, &np) {
		return
	}
	p, err := s.svc.Projects.Create(c.Request.Context(), sess(c), np)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) selectProject(c *gin.Context) {
	v, err := s.svc.Journey.SelectProject(c.Request.Context(), sess(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) updateProject(c *gin.Context) {
	var ch project.Changes
	if !s.bind(c, &ch) {
		return
	}
	p, err := s.svc.Projects.Update(c.Request.Context(), sess(c), c.Param("id"), ch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProject(c *gin.Context) {
	if err := s.svc.Projects.Delete(c.Request.Context(), sess(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addCollaborator(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !s.bind(c, &req) {
		return
	}
	p, err := s.svc.Projects.AddCollaborator(c.Request.Context(), sess(c), c.Param("id"), req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Journey.

func (s *Server) completePhase(c *gin.Context) {
	p, err := s.svc.Journey.CompletePhase(c.Request.Context(), sess(c), c.Param("id"), types.Phase(c.Param("phase")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) setProgress(c *gin.Context) {
	var req struct {
		Phase    types.Phase `json:"phase"`
		Progress int         `json:"progress"`
	}
	if !s.bind(c, &req) {
		return
	}
	p, err := s.svc.Journey.SetProgress(c.Request.Context(), sess(c), c.Param("id"), req.Phase, req.Progress)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) refreshProgress(c *gin.Context) {
	p, err := s.svc.Journey.RefreshProgress(c.Request.Context(), sess(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) completeResearch(c *gin.Context) {
	p, err := s.svc.Journey.CompleteResearch(c.Request.Context(), sess(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) exportProject(c *gin.Context) {
	format := export.Format(c.DefaultQuery("format", string(export.FormatJSON)))
	j, err := s.svc.Exporter.Snapshot(c.Request.Context(), sess(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := export.Encode(j, format)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	c.Data(http.StatusOK, export.ContentType(format), data)
}

// Tasks.

func (s *Server) listTasks(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := s.svc.Projects.Get(ctx, sess(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ts, err := s.svc.Tasks.ListTasks(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("group") == "status" {
		c.JSON(http.StatusOK, tasks.GroupByStatus(ts))
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (s *Server) addTask(c *gin.Context) {
	var nt tasks.NewTask
	if !s.bind(c, &nt) {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.svc.Projects.Get(ctx, sess(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.svc.Tasks.AddTask(ctx, c.Param("id"), nt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// visibleTask loads a task whose project the session user can see.
func (s *Server) visibleTask(c *gin.Context) (types.ResearchTask, bool) {
	ctx := c.Request.Context()
	t, err := s.svc.Tasks.Get(ctx, c.Param("taskID"))
	if err != nil {
		s.fail(c, err)
		return types.ResearchTask{}, false
	}
	if _, err := s.svc.Projects.Get(ctx, sess(c), t.ProjectID); err != nil {
		s.fail(c, err)
		return types.ResearchTask{}, false
	}
	return t, true
}

func (s *Server) updateTaskStatus(c *gin.Context) {
	var req struct {
		Status types.TaskStatus `json:"status"`
	}
	if !s.bind(c, &req) {
		return
	}
	t, ok := s.visibleTask(c)
	if !ok {
		return
	}
	updated, _, err := s.svc.Journey.UpdateTaskStatus(c.Request.Context(), sess(c), t.ID, req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteTask(c *gin.Context) {
	t, ok := s.visibleTask(c)
	if !ok {
		return
	}
	if err := s.svc.Tasks.DeleteTask(c.Request.Context(), t.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Topics.

func (s *Server) searchTopics(c *gin.Context) {
	catalog := s.svc.Topics.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"topics":     catalog.Search(c.Query("q"), c.Query("category")),
		"categories": catalog.Categories(),
		"goals":      catalog.Goals,
	})
}

func (s *Server) suggestTopics(c *gin.Context) {
	var req struct {
		Interests []string `json:"interests"`
		Count     int      `json:"count"`
	}
	if !s.bind(c, &req) {
		return
	}
	ts, err := s.svc.Topics.Suggest(c.Request.Context(), sess(c), req.Interests, req.Count)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (s *Server) selectTopic(c *gin.Context) {
	var req struct {
		TopicID string `json:"topic_id"`
	}
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.svc.Projects.Get(c.Request.Context(), sess(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	q, err := s.svc.Topics.Select(sess(c), c.Param("id"), req.TopicID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) stagedTopic(c *gin.Context) {
	t, ok := s.svc.Topics.Staged(sess(c), c.Param("id"))
	if !ok {
		s.fail(c, topic.ErrNothingStaged)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) cancelTopic(c *gin.Context) {
	s.svc.Topics.Cancel(sess(c), c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) confirmTopic(c *gin.Context) {
	var a topic.Answers
	if !s.bind(c, &a) {
		return
	}
	p, err := s.svc.Topics.Confirm(c.Request.Context(), sess(c), c.Param("id"), a)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Points, achievements and rewards.

func (s *Server) points(c *gin.Context) {
	user, err := sess(c).Require()
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.svc.Ledger.Points(c.Request.Context(), user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) achievements(c *gin.Context) {
	user, err := sess(c).Require()
	if err != nil {
		s.fail(c, err)
		return
	}
	as, err := s.svc.Ledger.Achievements(c.Request.Context(), user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, as)
}

func (s *Server) listRewards(c *gin.Context) {
	rs, err := s.svc.Ledger.ListRewards(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) createReward(c *gin.Context) {
	var r types.Reward
	if !s.bind(c, &r) {
		return
	}
	created, err := s.svc.Ledger.CreateReward(c.Request.Context(), r)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) redeemReward(c *gin.Context) {
	user, err := sess(c).Require()
	if err != nil {
		s.fail(c, err)
		return
	}
	tx, err := s.svc.Ledger.RedeemReward(c.Request.Context(), user.ID, c.Param("rewardID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// Communities and resources.

func (s *Server) searchCommunities(c *gin.Context) {
	var f directory.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := s.svc.Directory.SearchCommunities(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) createCommunity(c *gin.Context) {
	var nc directory.NewCommunity
	if !s.bind(c, &nc) {
		return
	}
	cm, err := s.svc.Directory.CreateCommunity(c.Request.Context(), sess(c), nc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (s *Server) joins(c *gin.Context) {
	js, err := s.svc.Directory.Joins(c.Request.Context(), sess(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, js)
}

func (s *Server) joinCommunity(c *gin.Context) {
	platform := types.Platform(c.Param("platform"))
	if !platform.Valid() {
		s.fail(c, fmt.Errorf("%q: %w", platform, directory.ErrUnknownPlatform))
		return
	}
	res, err := s.svc.Directory.JoinCommunity(c.Request.Context(), sess(c), platform, c.Param("communityID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) leaveCommunity(c *gin.Context) {
	cm, err := s.svc.Directory.LeaveCommunity(c.Request.Context(), sess(c), c.Param("communityID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cm)
}

func (s *Server) searchResources(c *gin.Context) {
	var f directory.ResourceFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	rs, err := s.svc.Directory.SearchResources(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) createResource(c *gin.Context) {
	var nr directory.NewResource
	if !s.bind(c, &nr) {
		return
	}
	r, err := s.svc.Directory.CreateResource(c.Request.Context(), sess(c), nr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) saveResource(c *gin.Context) {
	saved, created, err := s.svc.Directory.SaveResource(c.Request.Context(), sess(c), c.Param("resourceID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, saved)
}

func (s *Server) savedResources(c *gin.Context) {
	rs, err := s.svc.Directory.SavedResources(c.Request.Context(), sess(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}
