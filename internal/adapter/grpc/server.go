package grpc

import (
	"net"

	"google.golang.org/grpc"
	channelzservice "google.golang.org/grpc/channelz/service"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// PipelineService is the health service name whose status follows the last pipeline run
const PipelineService = "irrflow.Pipeline"

// PublicMethods are reachable without a token so probes and tooling work unauthenticated
var PublicMethods = []string{
	healthpb.Health_Check_FullMethodName,
	healthpb.Health_Watch_FullMethodName,
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo",
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo",
}

// Server exposes pipeline health over gRPC, plus channelz introspection behind the token
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer creates a gRPC server with the health service, reflection and token auth
// Health and reflection are public; channelz requires the token. An empty apiToken disables auth
func NewServer(apiToken string) *Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(AuthInterceptor(apiToken, PublicMethods...)),
		grpc.StreamInterceptor(StreamAuthInterceptor(apiToken, PublicMethods...)),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(PipelineService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	channelzservice.RegisterChannelzServiceToServer(grpcServer)

	return &Server{grpcServer: grpcServer, health: healthServer}
}

// ReportRun records the outcome of a pipeline run: a failed run marks the pipeline NOT_SERVING
// until a later run succeeds
func (s *Server) ReportRun(err error) {
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(PipelineService, status)
}

// Serve accepts connections on lis until Stop or GracefulStop is called
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and waits for in-flight RPCs
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
