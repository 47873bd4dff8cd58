package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var adminAddrFlag string

// adminURLFor joins the admin base address (defaulted from the daemon's
// convention in httpAddrFor) with path.
func adminURLFor(path string) string {
	addr := adminAddrFlag
	if addr == "" {
		addr = "localhost:7075"
	}
	return "http://" + addr + path
}

// bootstrapRestartCmd asks a running daemon to run an out-of-schedule FULL
// bootstrap cycle (spec §6 "bootstrap_restart").
func bootstrapRestartCmd(envName *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap_restart",
		Short: "trigger an out-of-schedule bootstrap cycle on a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Post(adminURLFor("/admin/bootstrap_restart"), "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("bootstrap_restart: daemon returned %s", resp.Status)
			}
			fmt.Println("bootstrap restart requested")
			return nil
		},
	}
	cmd.Flags().StringVar(&adminAddrFlag, "admin-addr", "", "admin HTTP address of a running daemon (default localhost:7075)")
	return cmd
}

// statusCmd prints the daemon's current queue depths and election count
// (spec §6 "status").
func statusCmd(envName *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "print a running daemon's processor and election status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Get(adminURLFor("/status"))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status: daemon returned %s", resp.Status)
			}
			var report statusReport
			if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
				return err
			}
			fmt.Printf("admit queue depth:   %d\n", report.AdmitQueueDepth)
			fmt.Printf("admit queue drops:   %d\n", report.AdmitQueueDrops)
			fmt.Printf("fork queue depth:    %d\n", report.ForkQueueDepth)
			fmt.Printf("active elections:    %d\n", report.ActiveElections)
			fmt.Printf("bootstrap running:   %v\n", report.BootstrapRunning)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminAddrFlag, "admin-addr", "", "admin HTTP address of a running daemon (default localhost:7075)")
	return cmd
}
