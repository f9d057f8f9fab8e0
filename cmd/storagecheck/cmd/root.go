package cmd

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"doc-manager-app/internal/aws"
	"doc-manager-app/internal/config"
	"doc-manager-app/pkg/logger"
)

// CredentialStore is what the credential commands need from a provider
type CredentialStore interface {
	aws.CredentialProvider
	ValidateCredentials(ctx context.Context) (*aws.Identity, error)
}

// Env carries configuration and service constructors shared by all
// subcommands. Nil fields are filled from the loaded configuration.
type Env struct {
	Out    io.Writer
	Config *config.AppConfig
	Logger *logger.Logger

	Credentials func() (CredentialStore, error)
	Storage     func(ctx context.Context) (aws.S3Service, error)

	timeout time.Duration
}

func (e *Env) init(envFile, endpoint, bucket string) error {
	if e.Config == nil {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		cfg, err := config.Load(files...)
		if err != nil {
			return err
		}
		e.Config = cfg
	}
	if endpoint != "" {
		e.Config.Storage.Endpoint = endpoint
	}
	if bucket != "" {
		e.Config.Storage.Bucket = bucket
	}

	if e.Logger == nil {
		e.Logger = logger.NewWithComponent("storagecheck")
		e.Logger.SetLevel(logger.ParseLevel(e.Config.LogLevel))
	}

	if e.Credentials == nil {
		e.Credentials = func() (CredentialStore, error) {
			return aws.NewSecureCredentialProvider(e.Config.KeyringService, e.Config.Storage)
		}
	}
	if e.Storage == nil {
		e.Storage = func(ctx context.Context) (aws.S3Service, error) {
			creds, err := e.Credentials()
			if err != nil {
				return nil, err
			}
			return aws.NewS3Service(ctx, e.Config.Storage, creds, e.Logger.Component("s3"))
		}
	}
	return nil
}

func (e *Env) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, e.timeout)
}

// RootCmd builds the storagecheck command tree
func RootCmd(env *Env) *cobra.Command {
	var envFile, endpoint, bucket string

	root := &cobra.Command{
		Use:   "storagecheck",
		Short: "Diagnostics for the object store behind the document service",
		Long:  aws.GetSetupGuidance(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.init(envFile, endpoint, bucket)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&envFile, "env", "", "env file to load instead of .env")
	root.PersistentFlags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint, overrides S3_ENDPOINT")
	root.PersistentFlags().StringVar(&bucket, "bucket", "", "bucket, overrides S3_BUCKET")
	root.PersistentFlags().DurationVar(&env.timeout, "timeout", 30*time.Second, "deadline for the whole command")

	root.AddCommand(PingCmd(env))
	root.AddCommand(ListCmd(env))
	root.AddCommand(ProbeCmd(env))
	root.AddCommand(PresignCmd(env))
	root.AddCommand(WhoAmICmd(env))
	root.AddCommand(LoginCmd(env))
	root.AddCommand(LogoutCmd(env))
	return root
}
