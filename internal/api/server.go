package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/codehost_agent/internal/cdpcontrol"
	"github.com/dgnsrekt/codehost_agent/internal/controller"
	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
)

type Service interface {
	ListTabs(ctx context.Context) ([]controller.TabSummary, error)
	ResolveTab(ctx context.Context, tabID string, mode controller.Mode) (controller.PageResult, error)
	ResolveAllTabs(ctx context.Context, mode controller.Mode) ([]controller.TabOutcome, error)
	ResolveDocument(ctx context.Context, pageURL, html string, mode controller.Mode) (controller.PageResult, error)
	RenderAndResolve(ctx context.Context, pageURL string, mode controller.Mode) (controller.PageResult, error)
}

type modeInput struct {
	Mode string `query:"mode" default:"auto" enum:"auto,file,diff,snippet" doc:"Resolver to run. auto picks one from the page type."`
}

type pageResultOutput struct {
	Body controller.PageResult
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Code Host Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerHealthHandlers(api)
	registerTabHandlers(api, svc)
	registerResolveHandlers(api, svc)

	return router
}

func parseMode(raw string) (controller.Mode, error) {
	mode, err := controller.ParseMode(raw)
	if err != nil {
		return "", mapErr(err)
	}
	return mode, nil
}

// mapErr turns resolver and transport errors into HTTP problems. Resolver
// errors carry their kind in the message so clients can branch on it.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var resolveErr *fileinfo.Error
	if errors.As(err, &resolveErr) {
		if resolveErr.Kind == fileinfo.KindInvalidURL {
			return huma.Error400BadRequest(resolveErr.Error())
		}
		return huma.Error422UnprocessableEntity(resolveErr.Error())
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
