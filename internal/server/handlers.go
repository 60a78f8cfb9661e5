package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranksOps/quern/internal/auth"
	"github.com/FranksOps/quern/internal/export"
	"github.com/FranksOps/quern/internal/history"
	"github.com/FranksOps/quern/internal/metrics"
	"github.com/FranksOps/quern/internal/pipeline"
	"github.com/FranksOps/quern/internal/searchconsole"
	"github.com/FranksOps/quern/internal/session"
	"github.com/FranksOps/quern/internal/topquery"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.Service.Name})
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := indexHTML.ReadFile("index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "index page missing")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// handleLogin starts the OAuth flow: ensure a session exists, issue a
// consent URL with a fresh CSRF state, and send the browser to Google.
func (s *Server) handleLogin(c *gin.Context) {
	sess, ok := s.sessionFromCookie(c)
	if !ok {
		sess = s.sessions.Create()
	}

	authURL, state, err := s.flow.Begin()
	if err != nil {
		s.logger.Error("failed to begin oauth flow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start Google authorization"})
		return
	}

	s.sessions.Update(sess.ID, func(live *session.Session) {
		// Re-login from an authorized session passes through anonymous
		// so the stage machine stays consistent.
		if live.Stage == auth.StageAuthorized {
			live.Stage = auth.StageAnonymous
			live.Token = nil
		}
		live.Stage = auth.StagePending
		live.CSRFState = state
	})

	cookie, err := s.codec.Issue(sess.ID)
	if err != nil {
		s.logger.Error("failed to issue session cookie", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.SetCookie(s.codec.Name(), cookie, int(s.codec.TTL()/time.Second), "/", "", false, true)

	c.Redirect(http.StatusFound, authURL)
}

// handleCallback finishes the OAuth flow: validate the state echo,
// exchange the code, and mark the session authorized.
func (s *Server) handleCallback(c *gin.Context) {
	sess := currentSession(c)

	if errParam := c.Query("error"); errParam != "" {
		s.sessions.Update(sess.ID, func(live *session.Session) {
			live.Stage = auth.StageAnonymous
			live.CSRFState = ""
		})
		c.JSON(http.StatusBadRequest, gin.H{"error": "google authorization failed: " + errParam})
		return
	}

	if !auth.ValidTransition(sess.Stage, auth.StageAuthorized) {
		c.JSON(http.StatusConflict, gin.H{"error": "no authorization in progress; visit /auth/login"})
		return
	}

	tok, err := s.flow.Exchange(c.Request.Context(), sess.CSRFState, c.Query("state"), c.Query("code"))
	if err != nil {
		if errors.Is(err, auth.ErrStateMismatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "oauth state mismatch; restart login"})
			return
		}
		s.logger.Error("token exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to exchange authorization code"})
		return
	}

	s.sessions.Update(sess.ID, func(live *session.Session) {
		live.Stage = auth.StageAuthorized
		live.Token = tok
		live.CSRFState = ""
	})

	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLogout(c *gin.Context) {
	sess := currentSession(c)
	s.sessions.Delete(sess.ID)
	c.SetCookie(s.codec.Name(), "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

func (s *Server) handleMe(c *gin.Context) {
	sess := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"stage":  sess.Stage.String(),
		"report": sess.Report,
	})
}

func (s *Server) handleSites(c *gin.Context) {
	sess := currentSession(c)

	src, ts, ok := s.newSource(c, sess)
	if !ok {
		return
	}
	defer src.Close()

	sites, err := src.ListSites(c.Request.Context())
	if err != nil {
		s.apiError(c, err)
		return
	}
	s.persistToken(sess.ID, ts)

	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

// reportRequest is the JSON body of POST /api/report.
type reportRequest struct {
	Property       string `json:"property" binding:"required"`
	DateRange      string `json:"date_range"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Device         string `json:"device"`
	Metric         string `json:"metric"`
	BrandTerms     string `json:"brand_terms"`
	DropZeroClicks bool   `json:"drop_zero_clicks"`
}

// handleReport runs a report, remembers its parameters on the session
// for export, and returns a preview of the first rows.
func (s *Server) handleReport(c *gin.Context) {
	sess := currentSession(c)

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	state, params, err := resolveRequest(req, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, ts, ok := s.newSource(c, sess)
	if !ok {
		return
	}
	defer src.Close()

	report, err := pipeline.New(src, s.history, s.logger).Run(c.Request.Context(), params)
	if err != nil {
		s.apiError(c, err)
		return
	}

	s.persistToken(sess.ID, ts)
	s.sessions.Update(sess.ID, func(live *session.Session) {
		live.Report = state
	})

	preview := report.Rows
	truncated := false
	if len(preview) > s.cfg.Service.PreviewRows {
		preview = preview[:s.cfg.Service.PreviewRows]
		truncated = true
	}

	c.JSON(http.StatusOK, gin.H{
		"property":      params.Property,
		"start_date":    params.StartDate,
		"end_date":      params.EndDate,
		"device":        params.Device,
		"metric":        params.Metric.String(),
		"fetched_rows":  report.FetchedRows,
		"reported_rows": len(report.Rows),
		"pages":         report.Pages,
		"duration_ms":   report.Duration.Milliseconds(),
		"preview":       preview,
		"truncated":     truncated,
	})
}

// handleExport re-runs the session's last report and streams it as a
// file download in the requested format.
func (s *Server) handleExport(c *gin.Context) {
	sess := currentSession(c)

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if sess.Report.Property == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no report to export; run a report first"})
		return
	}

	params, err := paramsFromState(sess.Report)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, ts, ok := s.newSource(c, sess)
	if !ok {
		return
	}
	defer src.Close()

	report, err := pipeline.New(src, s.history, s.logger).Run(c.Request.Context(), params)
	if err != nil {
		s.apiError(c, err)
		return
	}
	s.persistToken(sess.ID, ts)

	filename := export.Filename(params.Property, format, time.Now())
	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	if err := export.Write(c.Writer, format, report.Rows); err != nil {
		// Headers are gone; all we can do is log and cut the stream.
		s.logger.Error("export write failed",
			zap.String("format", string(format)),
			zap.Error(err),
		)
		c.Abort()
		return
	}
	metrics.RecordExport(string(format))
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "run history is disabled"})
		return
	}

	filter := history.Filter{
		Property: c.Query("property"),
		Status:   c.Query("status"),
		Limit:    50,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(pipeline.DateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return
		}
		filter.Since = since
	}

	runs, err := s.history.Query(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query run history"})
		return
	}

	out := make([]gin.H, 0, len(runs))
	for _, r := range runs {
		out = append(out, gin.H{
			"id":            r.ID,
			"property":      r.Property,
			"start_date":    r.StartDate,
			"end_date":      r.EndDate,
			"device":        r.Device,
			"metric":        r.Metric,
			"brand_terms":   r.BrandTerms,
			"fetched_rows":  r.FetchedRows,
			"reported_rows": r.ReportedRows,
			"pages":         r.Pages,
			"status":        r.Status,
			"error":         r.Error,
			"duration_ms":   r.Duration.Milliseconds(),
			"created_at":    r.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// resolveRequest validates a report request into the session state to
// remember and the pipeline parameters to run. Dates are resolved here
// so exports reproduce the exact window the user saw.
func resolveRequest(req reportRequest, today time.Time) (session.ReportState, pipeline.Params, error) {
	start, end, err := pipeline.ResolveDateRange(req.DateRange, req.StartDate, req.EndDate, today)
	if err != nil {
		return session.ReportState{}, pipeline.Params{}, err
	}
	device, err := pipeline.ParseDevice(req.Device)
	if err != nil {
		return session.ReportState{}, pipeline.Params{}, err
	}
	if req.Metric == "" {
		req.Metric = string(topquery.MetricClicks)
	}
	metric, err := topquery.ParseMetric(req.Metric)
	if err != nil {
		return session.ReportState{}, pipeline.Params{}, err
	}

	state := session.ReportState{
		Property:       req.Property,
		DateRange:      req.DateRange,
		StartDate:      start,
		EndDate:        end,
		Device:         device,
		Metric:         metric.String(),
		BrandTerms:     req.BrandTerms,
		DropZeroClicks: req.DropZeroClicks,
	}
	params := pipeline.Params{
		Property:       req.Property,
		StartDate:      start,
		EndDate:        end,
		Device:         device,
		Metric:         metric,
		BrandTerms:     topquery.ParseTerms(req.BrandTerms),
		DropZeroClicks: req.DropZeroClicks,
	}
	return state, params, nil
}

// paramsFromState rebuilds pipeline parameters from a remembered
// report, without re-resolving dates.
func paramsFromState(st session.ReportState) (pipeline.Params, error) {
	metric, err := topquery.ParseMetric(st.Metric)
	if err != nil {
		return pipeline.Params{}, err
	}
	return pipeline.Params{
		Property:       st.Property,
		StartDate:      st.StartDate,
		EndDate:        st.EndDate,
		Device:         st.Device,
		Metric:         metric,
		BrandTerms:     topquery.ParseTerms(st.BrandTerms),
		DropZeroClicks: st.DropZeroClicks,
	}, nil
}

// sessionFromCookie resolves the cookie without aborting, for endpoints
// that create a session when none exists.
func (s *Server) sessionFromCookie(c *gin.Context) (session.Session, bool) {
	value, err := c.Cookie(s.codec.Name())
	if err != nil {
		return session.Session{}, false
	}
	id, err := s.codec.Verify(value)
	if err != nil {
		return session.Session{}, false
	}
	return s.sessions.Get(id)
}

// newSource builds a Source for the session's credentials. On failure
// it writes the error response itself.
func (s *Server) newSource(c *gin.Context, sess session.Session) (Source, oauth2.TokenSource, bool) {
	ts := s.flow.TokenSource(c.Request.Context(), sess.Token)
	src, err := s.sources(ts)
	if err != nil {
		s.logger.Error("failed to build record source", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build search console client"})
		return nil, nil, false
	}
	return src, ts, true
}

// persistToken writes a possibly-refreshed token back to the session so
// later requests reuse it instead of refreshing again.
func (s *Server) persistToken(id string, ts oauth2.TokenSource) {
	tok, err := ts.Token()
	if err != nil {
		return
	}
	s.sessions.Update(id, func(live *session.Session) {
		live.Token = tok
	})
}

// apiError maps pipeline and source failures onto HTTP statuses.
func (s *Server) apiError(c *gin.Context, err error) {
	var apiErr *searchconsole.APIError
	switch {
	case errors.Is(err, topquery.ErrEmptyInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no data returned for the selected property and date range"})
	case errors.Is(err, topquery.ErrBadPattern):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusUnauthorized {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": apiErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
	}
}
