// ABOUTME: Operator CLI for a running arcstate-server instance
// ABOUTME: Reads and writes preferences and workspace state over the bridge API

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/arcstate/arcstate/internal/client"
)

const usage = `Usage: arcstate-admin [flags] <command>

Commands:
  get NAME [NAME...]          Print the named preferences
  set NAME VALUE              Store one preference (VALUE parsed as JSON)
  list                        List every stored preference
  clear                       Remove every preference
  workspace get               Print the stored workspace
  workspace set JSON          Submit a workspace object for the debounced write
  workspace clear             Remove every workspace field
  watch [preferences|workspace]
                              Stream change notifications
  export                      Write preferences to stdout as YAML
  import FILE                 Store every key of a YAML document
  health                      Check server health

Flags:
  -server URL   Server base URL (or ARCSTATE_URL, or server.url in cli.toml)
  -token TOKEN  Bearer token (or ARCSTATE_TOKEN, or server.token in cli.toml)
  -config PATH  CLI config file (default ~/.config/arcstate/cli.toml)
`

func main() {
	serverFlag := flag.String("server", "", "Server base URL")
	tokenFlag := flag.String("token", "", "Bearer token")
	configFlag := flag.String("config", defaultConfigPath(), "CLI config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := buildClient(*configFlag, *serverFlag, *tokenFlag)
	if err == nil {
		err = run(ctx, c, args)
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildClient resolves the server URL and token: flags beat environment
// variables beat the TOML config beat the localhost default.
func buildClient(configPath, serverFlag, tokenFlag string) (*client.Client, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	serverURL := serverFlag
	if serverURL == "" {
		serverURL = os.Getenv("ARCSTATE_URL")
	}
	if serverURL == "" {
		serverURL = cfg.Server.URL
	}
	if serverURL == "" {
		serverURL = "http://localhost:8155"
	}

	token := tokenFlag
	if token == "" {
		token = os.Getenv("ARCSTATE_TOKEN")
	}
	if token == "" {
		token = cfg.Server.Token
	}

	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(serverURL, opts...), nil
}

func run(ctx context.Context, c *client.Client, args []string) error {
	switch args[0] {
	case "get":
		return runGet(ctx, c, args[1:])
	case "set":
		return runSet(ctx, c, args[1:])
	case "list":
		return runList(ctx, c)
	case "clear":
		return c.ClearPreferences(ctx)
	case "workspace":
		return runWorkspace(ctx, c, args[1:])
	case "watch":
		return runWatch(ctx, c, args[1:])
	case "export":
		return runExport(ctx, c)
	case "import":
		return runImport(ctx, c, args[1:])
	case "health":
		if err := c.Health(ctx); err != nil {
			return err
		}
		fmt.Println("healthy")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func runGet(ctx context.Context, c *client.Client, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("get requires at least one NAME")
	}

	values, err := c.LoadPreferences(ctx, names...)
	if err != nil {
		return err
	}

	for _, name := range names {
		value, ok := values[name]
		if !ok {
			color.New(color.FgHiBlack).Printf("%s: (unset)\n", name)
			continue
		}
		fmt.Printf("%s: %s\n", name, formatValue(value))
	}
	return nil
}

func runSet(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("set requires NAME and VALUE")
	}
	return c.SetPreference(ctx, args[0], parseValue(args[1]))
}

func runList(ctx context.Context, c *client.Client) error {
	values, err := c.LoadPreferences(ctx)
	if err != nil {
		return err
	}

	if len(values) == 0 {
		fmt.Println("(no preferences stored)")
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE")
	fmt.Fprintln(w, "----\t-----")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, formatValue(values[name]))
	}
	return w.Flush()
}

func runWorkspace(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("workspace requires get, set, or clear")
	}

	switch args[0] {
	case "get":
		values, err := c.LoadWorkspace(ctx)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			fmt.Println("(no workspace stored)")
			return nil
		}
		return printYAML(values)
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("workspace set requires a JSON object argument")
		}
		var value map[string]any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			return fmt.Errorf("parsing workspace value: %w", err)
		}
		if err := c.SetWorkspace(ctx, value); err != nil {
			return err
		}
		fmt.Println("accepted")
		return nil
	case "clear":
		return c.ClearWorkspace(ctx)
	default:
		return fmt.Errorf("unknown workspace command: %s", args[0])
	}
}

func runWatch(ctx context.Context, c *client.Client, args []string) error {
	store := ""
	if len(args) > 0 {
		store = args[0]
	}

	changes, err := c.Watch(ctx, store)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)

	gray.Println("watching for changes (Ctrl+C to stop)")
	for change := range changes {
		gray.Printf("%s ", change.Time.Format("15:04:05"))
		cyan.Printf("%s", change.Store)
		fmt.Printf(" %s = %s", change.Key, formatValue(change.Value))
		if change.Origin != "local" {
			gray.Printf(" (%s)", change.Origin)
		}
		fmt.Println()
	}
	return ctx.Err()
}

func runExport(ctx context.Context, c *client.Client) error {
	values, err := c.LoadPreferences(ctx)
	if err != nil {
		return err
	}
	return printYAML(values)
}

func runImport(ctx context.Context, c *client.Client, args []string) error {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = os.ReadFile("/dev/stdin")
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading import document: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parsing import document: %w", err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.SetPreference(ctx, name, values[name]); err != nil {
			return fmt.Errorf("importing %s: %w", name, err)
		}
	}
	fmt.Printf("imported %d preference(s)\n", len(names))
	return nil
}

// parseValue interprets a CLI argument as JSON, falling back to a plain
// string: `12` is a number, `"12"` and `dark` are strings, `true` a bool.
func parseValue(arg string) any {
	var value any
	if err := json.Unmarshal([]byte(arg), &value); err != nil {
		return arg
	}
	return value
}

func formatValue(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

func printYAML(values map[string]any) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
