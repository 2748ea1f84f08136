package artifacts

import (
	"context"

	"github.com/aiman-zohra3/todo/internal/config"
)

// FromConfig builds the sinks named by cfg. It returns nil when artifact
// capture is disabled.
func FromConfig(ctx context.Context, cfg *config.Config) (Sink, error) {
	var sinks MultiSink
	if cfg.ArtifactsDir != "" {
		sinks = append(sinks, LocalSink{Dir: cfg.ArtifactsDir})
	}
	if cfg.ArtifactsBucket != "" {
		s3Sink, err := NewS3Sink(ctx, S3Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.ArtifactsBucket,
			UsePathStyle:    cfg.AWSEndpointS3 != "",
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
