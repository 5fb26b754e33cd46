package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/objectstore/factory"
)

type envReport struct {
	Environment      string `yaml:"environment"`
	Managed          bool   `yaml:"managed"`
	EnvVar           string `yaml:"env_var"`
	SidecarURL       string `yaml:"sidecar_url"`
	SidecarAvailable bool   `yaml:"sidecar_available"`
	StorageVariant   string `yaml:"storage_variant"`
	LocalRoot        string `yaml:"local_root,omitempty"`
	CloudBucket      string `yaml:"cloud_bucket,omitempty"`
}

// newEnvCommand reports what the environment detector sees and which storage variant
// serve would select, without constructing a backend.
func newEnvCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show managed-host detection and the storage variant that would be selected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			detector := factory.NewDetector(cfg.ObjectStorage.Managed, log, nil)
			signal := detector.Signal()

			report := envReport{
				Environment:      signal.Name,
				Managed:          signal.Managed,
				EnvVar:           signal.EnvVar,
				SidecarURL:       detector.SidecarURL(),
				SidecarAvailable: detector.IsSidecarAvailable(cmd.Context()),
				StorageVariant:   objectstore.VariantLocal.String(),
				LocalRoot:        cfg.ObjectStorage.Local.Root,
			}
			if signal.Managed {
				report.StorageVariant = objectstore.VariantCloud.String()
				report.LocalRoot = ""
				report.CloudBucket = cfg.ObjectStorage.Cloud.Bucket
			}

			data, err := yaml.Marshal(report)
			if err != nil {
				return fmt.Errorf("marshal environment report: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
