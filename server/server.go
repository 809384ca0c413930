// Package server exposes the conflict pipeline and the run history over HTTP.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-conflicts/align"
	"github.com/maastricht-university/meeting-conflicts/orchestrator"
	"github.com/maastricht-university/meeting-conflicts/store"
)

// AnalyzeRequest is the body of POST /analyze. Threshold and ClusterNum
// override the configured values when set.
type AnalyzeRequest struct {
	Transcript []align.TranscriptSegment `json:"transcript"`
	Speakers   []align.SpeakerSegment    `json:"speakers"`
	Threshold  *float64                  `json:"threshold,omitempty"`
	ClusterNum *int                      `json:"cluster_num,omitempty"`
}

type Server struct {
	app      *fiber.App
	pipeline *orchestrator.Pipeline
	runs     *store.Store
	outputs  string
}

// New builds the app. runs may be nil, in which case results are not recorded
// and the /runs routes answer 503.
func New(p *orchestrator.Pipeline, runs *store.Store, outputs string, version string) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{BodyLimit: 16 * 1024 * 1024}),
		pipeline: p,
		runs:     runs,
		outputs:  outputs,
	}
	s.app.Use(recover.New())
	s.app.Use(logger.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "version": version})
	})
	s.app.Post("/analyze", s.analyze)
	s.app.Get("/runs", s.listRuns)
	s.app.Get("/runs/:id", s.getRun)
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	log.WithField("addr", addr).Info("server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func apiError(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

func (s *Server) analyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "ERR_BAD_BODY", "Invalid JSON body")
	}
	params := s.pipeline.DefaultParams()
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			return apiError(c, fiber.StatusBadRequest, "ERR_BAD_THRESHOLD", "threshold must be within [0,1]")
		}
		params.Threshold = *req.Threshold
	}
	if req.ClusterNum != nil {
		if *req.ClusterNum < 1 {
			return apiError(c, fiber.StatusBadRequest, "ERR_BAD_CLUSTER_NUM", "cluster_num must be >= 1")
		}
		params.ClusterNum = *req.ClusterNum
	}

	rep, err := s.pipeline.Analyze(c.UserContext(), req.Transcript, req.Speakers, params)
	if errors.Is(err, align.ErrEmptyInput) {
		return apiError(c, fiber.StatusBadRequest, "ERR_EMPTY_INPUT", err.Error())
	}
	if err != nil {
		log.WithError(err).Error("analyze failed")
		return apiError(c, fiber.StatusInternalServerError, "ERR_ANALYZE_FAILED", err.Error())
	}

	var dir string
	if s.outputs != "" {
		if dir, err = orchestrator.Persist(s.outputs, rep); err != nil {
			log.WithError(err).Error("persisting run failed")
			return apiError(c, fiber.StatusInternalServerError, "ERR_PERSIST_FAILED", err.Error())
		}
	}
	if s.runs != nil {
		if err := s.runs.SaveRun(c.UserContext(), orchestrator.RunRecord(rep, dir), rep.Utterances, rep.Conflicts); err != nil {
			log.WithError(err).Error("recording run failed")
			return apiError(c, fiber.StatusInternalServerError, "ERR_STORE_FAILED", err.Error())
		}
	}
	return c.JSON(rep)
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	if s.runs == nil {
		return apiError(c, fiber.StatusServiceUnavailable, "ERR_NO_STORE", "run history disabled")
	}
	runs, err := s.runs.ListRuns(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "ERR_STORE_FAILED", err.Error())
	}
	return c.JSON(runs)
}

func (s *Server) getRun(c *fiber.Ctx) error {
	if s.runs == nil {
		return apiError(c, fiber.StatusServiceUnavailable, "ERR_NO_STORE", "run history disabled")
	}
	id := c.Params("id")
	run, err := s.runs.GetRun(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return apiError(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Run not found")
	}
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "ERR_STORE_FAILED", err.Error())
	}
	pairs, err := s.runs.Conflicts(c.UserContext(), id)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "ERR_STORE_FAILED", err.Error())
	}
	return c.JSON(fiber.Map{"run": run, "conflicts": pairs})
}
