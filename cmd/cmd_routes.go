package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var routesAddr string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the routes a running bridge has ingested from the core's OpenAPI document",
	Long:  `Fetches /api/routes from a bridge instance's debug HTTP surface and pretty-prints the result.`,
	RunE:  routesRun,
}

func init() {
	routesCmd.Flags().StringVar(&routesAddr, "addr", "http://localhost:8080", "debug HTTP surface address of a running bridge")
}

func routesRun(cmd *cobra.Command, args []string) error {
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(routesAddr + "/api/routes")
	if err != nil {
		return fmt.Errorf("cmd: fetch routes from %s: %w", routesAddr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cmd: read routes response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cmd: debug server returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded []map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		fmt.Fprintf(cmdOutput, "%s\n", string(body))
		return nil
	}

	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		fmt.Fprintf(cmdOutput, "%s\n", string(body))
		return nil
	}
	fmt.Fprintf(cmdOutput, "%s\n", string(pretty))
	return nil
}
