package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/logger"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the use cases exposed over HTTP.
type Deps struct {
	Log         *logger.Logger
	Tokens      TokenParser
	Users       *app.UserService
	Content     *app.ContentService
	Quiz        *app.QuizService
	Sessions    *app.SessionService
	Window      *app.WindowService
	Leaderboard *app.LeaderboardService
	Store       Pinger
	CORSOrigins []string
}

// Server holds handler dependencies.
type Server struct {
	log      *logger.Logger
	tokens   TokenParser
	users    *app.UserService
	content  *app.ContentService
	quiz     *app.QuizService
	sessions *app.SessionService
	window   *app.WindowService
	store    Pinger
	ws       *WSHandler
	origins  []string
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		log:      log,
		tokens:   d.Tokens,
		users:    d.Users,
		content:  d.Content,
		quiz:     d.Quiz,
		sessions: d.Sessions,
		window:   d.Window,
		store:    d.Store,
		ws:       NewWSHandler(d.Leaderboard, log),
		origins:  d.CORSOrigins,
	}
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), s.requestLogger(), corsMiddleware(s.origins))

	r.GET("/health", s.health)
	r.GET("/ws/leaderboard", gin.WrapF(s.ws.ServeWS))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	questions := api.Group("/questions")
	questions.GET("/categories", s.listCategories)
	questions.GET("", s.optionalAuth(), s.listQuestions)
	questionsAdmin := questions.Group("", s.requireAuth(), s.requireAdmin())
	questionsAdmin.POST("/categories", s.createCategory)
	questionsAdmin.POST("/create", s.createQuestion)
	questionsAdmin.PUT("/:id", s.updateQuestion)
	questionsAdmin.DELETE("/delete-all", s.deleteAllQuestions)
	questionsAdmin.DELETE("/:id", s.deleteQuestion)
	questionsAdmin.POST("/upload", s.uploadQuestions)

	admin := api.Group("/admin", s.requireAuth())
	admin.GET("/quiz-status", s.quizStatus)
	admin.POST("/start-quiz", s.requireAdmin(), s.startQuiz)
	admin.POST("/stop-quiz", s.requireAdmin(), s.stopQuiz)

	quiz := api.Group("/quiz")
	quiz.GET("/leaderboard", s.leaderboard)
	quiz.POST("/start", s.requireAuth(), s.startSession)
	quiz.POST("/answer", s.requireAuth(), s.submitAnswer)
	quiz.POST("/finish", s.requireAuth(), s.finishSession)

	users := api.Group("/users", s.requireAuth(), s.requireAdmin())
	users.GET("", s.listUsers)
	users.POST("", s.createUser)
	users.PUT("/:id", s.updateUser)
	users.DELETE("/:id", s.deleteUser)

	return r
}
