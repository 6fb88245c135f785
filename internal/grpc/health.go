// Package grpc exposes the aggregator's gRPC surface: the standard health
// service, reporting whether the database is reachable.
package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check name of the usage aggregator.
const ServiceName = "aiusage.Aggregator"

type Health struct {
	server *health.Server
}

// SetServing updates both the overall and the aggregator status.
func (h *Health) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
}

// NewServer builds the gRPC server. A non-empty serviceToken requires every
// call to carry it in the x-service-token metadata. The aggregator starts as
// NOT_SERVING until the first successful database check.
func NewServer(serviceToken string) (*grpc.Server, *Health, error) {
	var opts []grpc.ServerOption
	if serviceToken != "" {
		unary, err := NewServiceAuthUnaryInterceptor(serviceToken)
		if err != nil {
			return nil, nil, err
		}
		stream, err := NewServiceAuthStreamInterceptor(serviceToken)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.UnaryInterceptor(unary), grpc.StreamInterceptor(stream))
	}

	srv := grpc.NewServer(opts...)
	h := &Health{server: health.NewServer()}
	h.SetServing(false)
	healthpb.RegisterHealthServer(srv, h.server)
	return srv, h, nil
}
