package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newDevicesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := c.mediaDevices().ListDevices()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}

			fmt.Fprintln(out, "Доступные устройства:")
			for i, device := range devices {
				facing := string(device.Facing)
				if facing == "" {
					facing = "?"
				}
				fmt.Fprintf(out, "[%d] %s (%s, %s) id=%s\n", i, device.Label, device.Kind, facing, device.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести список в JSON")
	return cmd
}
