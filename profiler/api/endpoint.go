package api

import (
	"context"
	"errors"

	pkgerrors "github.com/absmach/profiler/pkg/errors"
	"github.com/absmach/profiler/profiler"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func healthEndpoint(svc profiler.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		report, err := svc.Health(ctx)
		if err != nil {
			return healthResponse{}, err
		}

		return healthResponse{HealthReport: report}, nil
	}
}

func snapshotEndpoint(svc profiler.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(snapshotReq)
		if !ok {
			return snapshotResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return snapshotResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		snap, err := svc.Snapshot(ctx, req.index)
		if err != nil {
			return snapshotResponse{}, err
		}

		return newSnapshotResponse(snap, false), nil
	}
}

func powerEndpoint(svc profiler.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		status, err := svc.Power(ctx)
		if err != nil {
			return powerResponse{}, err
		}

		return powerResponse{PowerStatus: status}, nil
	}
}

func dumpEndpoint(svc profiler.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		snap, err := svc.Dump(ctx)
		if err != nil {
			return snapshotResponse{}, err
		}

		return newSnapshotResponse(snap, true), nil
	}
}
