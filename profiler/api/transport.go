package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/absmach/profiler/pkg/api"
	pkgerrors "github.com/absmach/profiler/pkg/errors"
	"github.com/absmach/profiler/profiler"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const indexKey = "index"

func MakeHandler(svc profiler.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Get("/report", otelhttp.NewHandler(kithttp.NewServer(
		healthEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-report").ServeHTTP)
	mux.Get("/snapshots/{index}", otelhttp.NewHandler(kithttp.NewServer(
		snapshotEndpoint(svc),
		decodeSnapshotReq,
		api.EncodeResponse,
		opts...,
	), "get-snapshot").ServeHTTP)
	mux.Get("/power", otelhttp.NewHandler(kithttp.NewServer(
		powerEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-power").ServeHTTP)
	mux.Post("/dump", otelhttp.NewHandler(kithttp.NewServer(
		dumpEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "dump").ServeHTTP)

	mux.Get("/health", supermq.Health("profiler", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeSnapshotReq(_ context.Context, r *http.Request) (any, error) {
	index, err := strconv.Atoi(chi.URLParam(r, indexKey))
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
	}

	return snapshotReq{index: index}, nil
}
