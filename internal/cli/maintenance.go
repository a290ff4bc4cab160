package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newMaintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "maintenance on|off",
		Short:     "Toggle maintenance mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			state := args[0]
			if state != "on" && state != "off" {
				return errors.New("state must be 'on' or 'off'")
			}
			if cfg.AdminSecret == "" {
				return errors.New("admin secret required (--secret or ATLASGUESS_ADMIN_SECRET)")
			}

			var result struct {
				Maintenance bool `json:"maintenance"`
			}
			path := fmt.Sprintf("/maintenance/%s/%s", cfg.AdminSecret, state)
			if err := client.Post(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("maintenance %s", state))
			return nil
		},
	}
}
