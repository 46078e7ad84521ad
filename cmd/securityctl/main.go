// securityctl es la CLI de operación del servicio de seguridad de cuentas.
//
// La mayoría de los comandos son clientes HTTP del servicio (requieren un
// bearer token del usuario). `devices purge` va directo a PostgreSQL porque
// la limpieza de vencidos es una tarea de operación, no un endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/J4CIVY/bskmt-security/internal/store/pg"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	_ = godotenv.Load()

	var (
		baseURL = envOr("BSKMT_SECURITY_URL", "http://localhost:8080")
		token   = envOr("BSKMT_SECURITY_TOKEN", "")
		out     = envOr("BSKMT_SECURITY_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "securityctl",
		Short: "CLI de operación del servicio de seguridad de cuentas BSK MT",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env BSKMT_SECURITY_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token del usuario (env BSKMT_SECURITY_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: timeout}}
	requireToken := func(*cobra.Command, []string) error {
		cl.BaseURL, cl.Token, cl.OutFormat = baseURL, token, out
		if token == "" {
			return fmt.Errorf("falta el bearer token (flag --token o env BSKMT_SECURITY_TOKEN)")
		}
		return nil
	}

	// grupo devices
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Dispositivos confiables del usuario del token",
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "Listar dispositivos vigentes",
		PreRunE: requireToken,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/security/devices", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:     "revoke <deviceID>",
		Short:   "Revocar un dispositivo por id",
		Args:    cobra.ExactArgs(1),
		PreRunE: requireToken,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/security/devices/"+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	revokeAllCmd := &cobra.Command{
		Use:     "revoke-all",
		Short:   "Revocar todos los dispositivos del usuario",
		PreRunE: requireToken,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/security/devices", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	// purge: directo a la DB. La expiración perezosa hace que esto nunca sea
	// necesario para la corrección; solo recupera espacio.
	var purgeDSN string
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Borrar entradas vencidas de todos los usuarios (directo a PostgreSQL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if purgeDSN == "" {
				purgeDSN = os.Getenv("DATABASE_DSN")
			}
			if purgeDSN == "" {
				return fmt.Errorf("falta el DSN (flag --dsn o env DATABASE_DSN)")
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			st, err := pg.New(ctx, purgeDSN, pg.Config{MaxConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.PurgeExpiredDevices(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("purged=%d\n", n)
			return nil
		},
	}
	purgeCmd.Flags().StringVar(&purgeDSN, "dsn", "", "DSN de PostgreSQL (env DATABASE_DSN)")

	devicesCmd.AddCommand(listCmd, revokeCmd, revokeAllCmd, purgeCmd)

	// grupo alerts
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Preferencia de alertas de seguridad del usuario del token",
	}

	alertsGetCmd := &cobra.Command{
		Use:     "get",
		Short:   "Leer la preferencia",
		PreRunE: requireToken,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/security/alerts", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	alertsSetCmd := &cobra.Command{
		Use:     "set <true|false>",
		Short:   "Actualizar la preferencia",
		Args:    cobra.ExactArgs(1),
		PreRunE: requireToken,
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := strings.EqualFold(args[0], "true")
			payload, _ := json.Marshal(map[string]bool{"security_alerts": enabled})
			status, body, err := cl.do("PUT", "/v1/security/alerts", payload)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	alertsCmd.AddCommand(alertsGetCmd, alertsSetCmd)

	root.AddCommand(devicesCmd, alertsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
