package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerResolveHandlers(api huma.API, svc Service) {
	type resolveInput struct {
		Body struct {
			URL  string `json:"url" required:"true" doc:"Absolute URL the markup was captured from"`
			HTML string `json:"html" required:"true" doc:"Serialised document"`
			Mode string `json:"mode,omitempty" enum:"auto,file,diff,snippet" doc:"Resolver to run. Defaults to auto."`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "resolve-document", Method: http.MethodPost, Path: "/api/v1/resolve", Summary: "Resolve file info from supplied markup", Tags: []string{"Resolve"}},
		func(ctx context.Context, input *resolveInput) (*pageResultOutput, error) {
			mode, err := parseMode(input.Body.Mode)
			if err != nil {
				return nil, err
			}
			result, err := svc.ResolveDocument(ctx, input.Body.URL, input.Body.HTML, mode)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pageResultOutput{Body: result}, nil
		})

	type renderInput struct {
		Body struct {
			URL  string `json:"url" required:"true" doc:"Code-host page to load headlessly"`
			Mode string `json:"mode,omitempty" enum:"auto,file,diff,snippet" doc:"Resolver to run. Defaults to auto."`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "render-and-resolve", Method: http.MethodPost, Path: "/api/v1/render", Summary: "Render a URL and resolve file info", Tags: []string{"Resolve"}},
		func(ctx context.Context, input *renderInput) (*pageResultOutput, error) {
			mode, err := parseMode(input.Body.Mode)
			if err != nil {
				return nil, err
			}
			result, err := svc.RenderAndResolve(ctx, input.Body.URL, mode)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pageResultOutput{Body: result}, nil
		})
}
