package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/domain"
)

const maxUploadBytes = 5 << 20

func (s *Server) health(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.log.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes a JSON body, reporting malformed input as a validation error.
func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, badRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, badRequest("invalid id "+strconv.Quote(c.Param("id"))))
		return 0, false
	}
	return id, true
}

// Auth

func (s *Server) register(c *gin.Context) {
	var in app.UserInput
	if !s.bind(c, &in) {
		return
	}
	user, err := s.users.Register(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var creds app.Credentials
	if !s.bind(c, &creds) {
		return
	}
	res, err := s.users.Login(c.Request.Context(), creds)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Categories and questions

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.content.ListCategories(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if !s.bind(c, &req) {
		return
	}
	category, err := s.content.CreateCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) listQuestions(c *gin.Context) {
	var caller *int64
	if claims, ok := claimsFrom(c); ok {
		id := claims.UserID
		caller = &id
	}
	views, err := s.quiz.ListQuestions(c.Request.Context(), caller)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// adminOption exposes correctness to authors only.
type adminOption struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	IsCorrect bool   `json:"is_correct"`
}

type adminQuestion struct {
	ID         int64             `json:"id"`
	CategoryID *int64            `json:"category_id"`
	Category   string            `json:"category"`
	Content    string            `json:"content"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Points     int               `json:"points"`
	Options    []adminOption     `json:"options"`
}

func toAdminQuestion(q domain.Question) adminQuestion {
	out := adminQuestion{
		ID:         q.ID,
		CategoryID: q.CategoryID,
		Category:   q.CategoryName,
		Content:    q.Content,
		Difficulty: q.Difficulty,
		Points:     q.Points,
		Options:    make([]adminOption, 0, len(q.Options)),
	}
	for _, o := range q.Options {
		out.Options = append(out.Options, adminOption{ID: o.ID, Content: o.Content, IsCorrect: o.Correct})
	}
	return out
}

func (s *Server) createQuestion(c *gin.Context) {
	var in app.QuestionInput
	if !s.bind(c, &in) {
		return
	}
	q, err := s.content.CreateQuestion(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAdminQuestion(q))
}

func (s *Server) updateQuestion(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var in app.QuestionUpdate
	if !s.bind(c, &in) {
		return
	}
	q, err := s.content.UpdateQuestion(c.Request.Context(), id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAdminQuestion(q))
}

func (s *Server) deleteQuestion(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.content.DeleteQuestion(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageBody{Message: "Question deleted"})
}

func (s *Server) deleteAllQuestions(c *gin.Context) {
	if err := s.content.DeleteAllQuestions(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageBody{Message: "All questions deleted"})
}

type importResponse struct {
	Message      string   `json:"message"`
	SuccessCount int      `json:"successCount"`
	Errors       []string `json:"errors"`
}

// uploadQuestions accepts a multipart "file" field or a raw CSV body.
func (s *Server) uploadQuestions(c *gin.Context) {
	variant, err := domain.ParseImportVariant(c.Query("variant"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	var body io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			s.respondError(c, badRequest("file is required"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.respondError(c, badRequest("cannot read upload"))
			return
		}
		defer f.Close()
		body = f
	} else {
		body = c.Request.Body
	}

	res, err := s.content.Import(c.Request.Context(), body, variant)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("questions imported", "imported", res.SuccessCount, "failed", len(res.Errors), "variant", variant)
	c.JSON(http.StatusOK, importResponse{Message: res.Message(), SuccessCount: res.SuccessCount, Errors: res.Errors})
}

// Quiz window

type startQuizRequest struct {
	Duration int `json:"duration"`
}

func (s *Server) startQuiz(c *gin.Context) {
	var req startQuizRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	st, err := s.window.Start(c.Request.Context(), req.Duration)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("quiz window started", "revision", st.Revision, "duration_minutes", st.DurationMinutes)
	c.JSON(http.StatusOK, st)
}

func (s *Server) stopQuiz(c *gin.Context) {
	st, err := s.window.Stop(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("quiz window stopped", "revision", st.Revision)
	c.JSON(http.StatusOK, st)
}

func (s *Server) quizStatus(c *gin.Context) {
	st, err := s.window.Status(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Sessions and answers

type answerRequest struct {
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId"`
}

type finishRequest struct {
	SessionID int64 `json:"sessionId"`
}

type startSessionResponse struct {
	Message   string `json:"message"`
	SessionID int64  `json:"sessionId"`
}

type finishResponse struct {
	Message     string     `json:"message"`
	SessionID   int64      `json:"sessionId"`
	TotalScore  int        `json:"totalScore"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (s *Server) startSession(c *gin.Context) {
	session, err := s.sessions.StartSession(c.Request.Context(), callerID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, startSessionResponse{Message: "Quiz started", SessionID: session.ID})
}

func (s *Server) submitAnswer(c *gin.Context) {
	var req answerRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.quiz.SubmitAnswer(c.Request.Context(), callerID(c), req.QuestionID, req.OptionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) finishSession(c *gin.Context) {
	var req finishRequest
	if !s.bind(c, &req) {
		return
	}
	session, err := s.sessions.FinishSession(c.Request.Context(), callerID(c), req.SessionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, finishResponse{
		Message:     "Quiz finished",
		SessionID:   session.ID,
		TotalScore:  session.TotalScore,
		CompletedAt: session.CompletedAt,
	})
}

func (s *Server) leaderboard(c *gin.Context) {
	entries, err := s.sessions.Leaderboard(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Users

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var in app.UserInput
	if !s.bind(c, &in) {
		return
	}
	user, err := s.users.Create(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var in app.UserInput
	if !s.bind(c, &in) {
		return
	}
	user, err := s.users.Update(c.Request.Context(), id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.users.Delete(c.Request.Context(), callerID(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageBody{Message: "User deleted"})
}
