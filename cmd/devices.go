package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/droidpilot/internal/adb"
	"github.com/xkilldash9x/droidpilot/internal/config"
	"github.com/xkilldash9x/droidpilot/internal/observability"
)

// newDevicesCmd lists attached devices so the operator can verify the
// bridge before starting a run.
func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Lists devices visible to the adb bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			bridge := adb.New(cfg.Bridge, observability.GetLogger())
			devices, err := bridge.Devices(cmd.Context())
			if err != nil {
				return err
			}

			if len(devices) == 0 {
				fmt.Println("No devices attached. Connect a device with USB debugging enabled.")
				return nil
			}
			for _, d := range devices {
				if d.Model != "" {
					fmt.Printf("%s\t%s\t%s\n", d.Serial, d.State, d.Model)
				} else {
					fmt.Printf("%s\t%s\n", d.Serial, d.State)
				}
			}
			return nil
		},
	}
}
