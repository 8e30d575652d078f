package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/query"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App holds the shared collaborators every request handler needs: the
// graph registry, the job queue channel, the JWKS keyfunc, and the S3
// client used for archive objects.
type App struct {
	Registry       *graph.Registry
	Query          func(g *graph.Graph) (*query.Client, error)
	Queue          *amqp091.Channel
	Key            *keyfunc.Keyfunc
	S3             *s3.Client
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
