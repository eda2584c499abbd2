package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
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
	var (
		baseURL = envOr("LINERELAY_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("LINERELAY_ADMIN_KEY", "")
		out     = envOr("LINERELAY_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "linerelayctl",
		Short: "CLI admin para linerelay (send/users/messages)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env LINERELAY_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del servicio (env LINERELAY_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key de administración (env LINERELAY_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: timeout}}

	// send: encola un mensaje de texto
	var (
		sendText      string
		sendTo        string
		sendToList    []string
		sendAll       bool
		sendScheduled string
		sendImageURL  string
		sendAltText   string
	)
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Encolar un mensaje (texto o imagen) hacia all|single|list",
		RunE: func(cmd *cobra.Command, args []string) error {
			content := map[string]any{}
			switch {
			case sendImageURL != "":
				content["type"] = "image"
				content["imageUrl"] = sendImageURL
				if sendAltText != "" {
					content["altText"] = sendAltText
				}
			case sendText != "":
				content["type"] = "text"
				content["text"] = sendText
			default:
				return fmt.Errorf("--text o --image-url es requerido")
			}

			target := map[string]any{}
			switch {
			case sendAll:
				target["type"] = "all"
			case sendTo != "":
				target["type"] = "single"
				target["userId"] = sendTo
			case len(sendToList) > 0:
				target["type"] = "list"
				target["userIds"] = sendToList
			default:
				return fmt.Errorf("--all, --to o --to-list es requerido")
			}

			payload := map[string]any{"content": content, "target": target}
			if sendScheduled != "" {
				payload["scheduledAt"] = sendScheduled
			}
			b, _ := json.Marshal(payload)

			status, body, err := cl.do("POST", "/send-message", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("send fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	sendCmd.Flags().StringVar(&sendText, "text", "", "Texto del mensaje")
	sendCmd.Flags().StringVar(&sendImageURL, "image-url", "", "URL de la imagen (alternativa a --text)")
	sendCmd.Flags().StringVar(&sendAltText, "alt-text", "", "Texto alternativo de la imagen")
	sendCmd.Flags().BoolVar(&sendAll, "all", false, "Enviar a todos los seguidores activos")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "LINE user ID destino (target single)")
	sendCmd.Flags().StringSliceVar(&sendToList, "to-list", nil, "Lista de LINE user IDs (target list)")
	sendCmd.Flags().StringVar(&sendScheduled, "scheduled-at", "", "Programar el envío (RFC3339)")

	// users: lista de destinatarios activos
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Listar destinatarios activos",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/users", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("users fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	// messages: historial de jobs
	var msgLimit int
	messagesCmd := &cobra.Command{
		Use:   "messages",
		Short: "Listar jobs de envío recientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/messages"
			if msgLimit > 0 {
				path = fmt.Sprintf("%s?limit=%d", path, msgLimit)
			}
			status, body, err := cl.do("GET", path, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("messages fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	messagesCmd.Flags().IntVar(&msgLimit, "limit", 0, "Máximo de jobs a listar (default del server: 20)")

	// ping: liveness del servicio
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping al servicio (GET /healthz)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/healthz", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	root.AddCommand(sendCmd)
	root.AddCommand(usersCmd)
	root.AddCommand(messagesCmd)
	root.AddCommand(pingCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
