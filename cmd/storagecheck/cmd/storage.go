package cmd

import (
	"fmt"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"doc-manager-app/internal/aws"
)

func PingCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the bucket is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := env.withTimeout(cmd.Context())
			defer cancel()

			svc, err := env.Storage(ctx)
			if err != nil {
				return err
			}
			report, err := svc.TestConnection(ctx)
			if err != nil {
				return err
			}

			objects := "empty"
			if report.HasObject {
				objects = "has objects"
			}
			fmt.Fprintf(env.Out, "OK %s/%s (%s) %s in %s\n",
				report.Endpoint, report.Bucket, report.Region, objects, report.Latency.Round(time.Millisecond))
			return nil
		},
	}
}

func ListCmd(env *Env) *cobra.Command {
	var limit int32

	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List objects in the bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := env.withTimeout(cmd.Context())
			defer cancel()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			svc, err := env.Storage(ctx)
			if err != nil {
				return err
			}
			objects, err := svc.ListObjects(ctx, prefix, limit)
			if err != nil {
				return err
			}
			if len(objects) == 0 {
				fmt.Fprintln(env.Out, "No objects")
				return nil
			}

			w := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
			for _, obj := range objects {
				fmt.Fprintf(w, "%s\t%d\t%s\n", obj.Key, obj.Size, obj.LastModified.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int32VarP(&limit, "limit", "n", 100, "maximum number of objects")
	return cmd
}

func ProbeCmd(env *Env) *cobra.Command {
	var size int64

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Write, verify and delete a random object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := env.withTimeout(cmd.Context())
			defer cancel()

			svc, err := env.Storage(ctx)
			if err != nil {
				return err
			}

			progress := make(chan aws.UploadProgress, 16)
			var peak float64
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for p := range progress {
					if p.Percentage > peak {
						peak = p.Percentage
					}
				}
			}()

			result, err := svc.Probe(ctx, size, progress)
			close(progress)
			wg.Wait()
			if err != nil {
				if result != nil && !result.Cleaned {
					fmt.Fprintf(env.Out, "Probe object %s was not removed\n", result.Key)
				}
				return err
			}

			fmt.Fprintf(env.Out, "OK wrote %d bytes to %s (%.0f%%)\n", result.Bytes, result.Key, peak)
			fmt.Fprintf(env.Out, "upload %s, round trip %s\n", result.Upload.Round(time.Millisecond), result.Total.Round(time.Millisecond))
			if !result.Cleaned {
				fmt.Fprintf(env.Out, "warning: %s was not removed\n", result.Key)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&size, "size", 64<<10, "probe object size in bytes")
	return cmd
}

func PresignCmd(env *Env) *cobra.Command {
	var expires time.Duration

	cmd := &cobra.Command{
		Use:   "presign <key>",
		Short: "Print a presigned download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := env.withTimeout(cmd.Context())
			defer cancel()

			svc, err := env.Storage(ctx)
			if err != nil {
				return err
			}
			url, err := svc.GeneratePresignedURL(ctx, args[0], expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(env.Out, url)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expires, "expires", time.Hour, "URL lifetime, at most 168h")
	return cmd
}
