package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/internal/diagnostics"
	"github.com/ouvrio/courrier/internal/dispatch"

	"github.com/labstack/echo/v4"
	"github.com/modfin/henry/slicez"
)

func (s *Server) postDispatch(c echo.Context) error {
	var req courrier.DispatchRequest
	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse body")
	}

	res, err := s.dispatcher.Dispatch(c.Request().Context(), req.TemplateId, req.Recipient, req.Variables, req.SourceEventRef)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, dispatch.ErrSendingDisabled), errors.Is(err, dispatch.ErrMisconfigured):
		return c.JSON(http.StatusConflict, res)
	case errors.Is(err, dispatch.ErrUnknownTemplate), errors.Is(err, dispatch.ErrBadRecipient):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case res.MessageId != "":
		// the failure was recorded, the caller gets a structured result
		return c.JSON(http.StatusOK, res)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) getConfig(c echo.Context) error {
	cfg := s.store.Load()
	cfg.Secret = ""
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) putConfig(c echo.Context) error {
	var cfg dao.MailConfig
	err := c.Bind(&cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse body")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("port %d is out of range 1-65535", cfg.Port))
	}
	if cfg.Provider != dao.ProviderSMTP && cfg.Provider != dao.ProviderAPI {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("provider must be %s or %s", dao.ProviderSMTP, dao.ProviderAPI))
	}

	err = s.store.Save(cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save config")
	}
	cfg.Secret = ""
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) postDiagnostics(c echo.Context) error {
	steps := s.pipeline.Run(c.Request().Context(), c.QueryParam("recipient"))
	return c.JSON(http.StatusOK, courrier.DiagnosticsReport{
		Overall: diagnostics.Summarize(steps),
		Steps:   steps,
	})
}

func (s *Server) getHistory(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, err := s.db.GetDispatchHistory(limit)
	if err != nil {
		s.log.WithError(err).Error("could not read dispatch history")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read dispatch history")
	}

	return c.JSON(http.StatusOK, slicez.Map(records, func(r dao.DispatchRecord) courrier.DispatchRecord {
		return courrier.DispatchRecord{
			MessageId:       r.MessageId,
			TemplateId:      r.TemplateId,
			Recipient:       r.Recipient,
			RenderedSubject: r.RenderedSubject,
			SourceEventRef:  r.SourceEventRef,
			Status:          r.Status,
			ErrorDetail:     r.ErrorDetail,
			CreatedAt:       r.CreatedAt,
		}
	}))
}

func (s *Server) getHistoryLog(c echo.Context) error {
	entries, err := s.db.GetDispatchLog(c.Param("id"))
	if err != nil {
		s.log.WithError(err).Error("could not read dispatch log")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read dispatch log")
	}

	type logLine struct {
		CreatedAt time.Time `json:"created_at"`
		Log       string    `json:"log"`
	}
	return c.JSON(http.StatusOK, slicez.Map(entries, func(e dao.DispatchLogEntry) logLine {
		return logLine{CreatedAt: e.CreatedAt, Log: e.Log}
	}))
}
