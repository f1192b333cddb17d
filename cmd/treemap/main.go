package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-trees/internal/logging"
	"github.com/joeblew999/plat-trees/internal/scene"
	"github.com/joeblew999/plat-trees/internal/server"
	"github.com/joeblew999/plat-trees/internal/service"
	"github.com/joeblew999/plat-trees/internal/sun"
)

// Options defines all CLI flags and env vars for the tree editor.
// Flags: --host, --port, --data-dir, --web-dir, --mapbox-token, --location, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_MAPBOX_TOKEN, SERVICE_LOCATION, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for the DuckDB catalog and saved scenes; empty keeps everything in memory" default:".data"`
	WebDir      string `doc:"Optional web/ directory overriding the embedded templates" default:""`
	NoDB        bool   `doc:"Disable the DuckDB catalog" default:"false"`
	LogLevel    string `doc:"Log level (trace, debug, info, warn, error)" default:"info"`
	MapboxToken string `doc:"Mapbox GL access token"`
	MinHeight   int    `doc:"Minimum random tree height in metres" default:"5"`
	MaxHeight   int    `doc:"Maximum random tree height in metres" default:"15"`
	Spacing     int    `doc:"Minimum distance between trees of one drag, in metres" default:"5"`
	Location    string `doc:"Map centre and sun observer as lat,lng" default:"40.7128,-74.0060"`
	Timezone    string `doc:"IANA time zone of the sun sliders" default:"America/New_York"`
	Seed        int64  `doc:"Tree height seed; 0 seeds from the clock" default:"0"`
}

// latLng parses the Location option.
func latLng(opts *Options) (lat, lng float64, err error) {
	a, b, ok := strings.Cut(opts.Location, ",")
	if !ok {
		return 0, 0, fmt.Errorf("location %q: want lat,lng", opts.Location)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(a), 64); err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("location %q: bad latitude", opts.Location)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(b), 64); err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("location %q: bad longitude", opts.Location)
	}
	return lat, lng, nil
}

func sessionConfig(opts *Options) (service.SessionConfig, error) {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return service.SessionConfig{}, fmt.Errorf("timezone %q: %w", opts.Timezone, err)
	}
	lat, lng, err := latLng(opts)
	if err != nil {
		return service.SessionConfig{}, err
	}
	return service.SessionConfig{
		Settings: service.Settings{
			MinHeight: float64(opts.MinHeight),
			MaxHeight: float64(opts.MaxHeight),
			Spacing:   float64(opts.Spacing),
		},
		Latitude:  lat,
		Longitude: lng,
		Location:  loc,
		Seed:      uint64(opts.Seed),
	}, nil
}

func newServer(opts *Options) (*server.Server, error) {
	sess, err := sessionConfig(opts)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		DataDir:     opts.DataDir,
		WebDir:      opts.WebDir,
		NoDB:        opts.NoDB,
		MapboxToken: opts.MapboxToken,
		Session:     sess,
		Log:         logging.New(opts.LogLevel),
	})
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("Error marshaling output: %v", err)
	}
	fmt.Println(string(out))
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := logging.New(opts.LogLevel)
		var srv *server.Server
		httpSrv := &http.Server{Addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port)}

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				log.Fatal().Err(err).Msg("server init failed")
			}
			httpSrv.Handler = srv

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)
			if opts.MapboxToken == "" {
				log.Warn().Msg("no mapbox token set, the editor map will not load")
			}
			log.Info().
				Str("addr", httpSrv.Addr).
				Str("editor", baseURL+"/editor").
				Str("docs", baseURL+"/docs").
				Str("openapi", baseURL+"/openapi.json").
				Msg("plat-trees starting")

			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("server error")
			}
		})

		hooks.OnStop(func() {
			log.Info().Msg("shutting down")
			httpSrv.Close()
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "treemap"
	cli.Root().Short = "3D building and tree editor for GeoJSON maps"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			srv, err := newServer(opts)
			if err != nil {
				fail("Error creating server: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			if !useYAML {
				printJSON(spec)
				return
			}
			output, err := yaml.Marshal(spec)
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// classify subcommand: summarise a GeoJSON file the way a load would
	classifyCmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Report the buildings and trees a GeoJSON file would load as",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fail("Error reading %s: %v", args[0], err)
			}
			raw, err := scene.Decode(data)
			if err != nil {
				fail("Invalid GeoJSON: %v", err)
			}
			seed := uint64(opts.Seed)
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			gen := scene.NewGenerator(scene.NewStore(), rand.NewPCG(seed, seed),
				scene.Heights{Min: float64(opts.MinHeight), Max: float64(opts.MaxHeight)})
			part := scene.Classify(raw, gen)
			printJSON(map[string]int{
				"features":  len(raw.Features),
				"buildings": len(part.Buildings),
				"trees":     len(part.Trees),
				"upgraded":  part.Upgraded,
				"dropped":   part.Dropped,
				"orphans":   part.Orphans,
			})
		}),
	}
	cli.Root().AddCommand(classifyCmd)

	// sun subcommand: print the sun position and scene lights
	sunCmd := &cobra.Command{
		Use:   "sun",
		Short: "Print the sun position and map lights for a date and time",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			loc, err := time.LoadLocation(opts.Timezone)
			if err != nil {
				fail("Error loading timezone: %v", err)
			}
			lat, lng, err := latLng(opts)
			if err != nil {
				fail("Error: %v", err)
			}
			controls := sun.NewControls()
			for _, name := range []string{"month", "day", "hour", "minute"} {
				if !cmd.Flags().Changed(name) {
					continue
				}
				v, _ := cmd.Flags().GetInt(name)
				if _, err := controls.Set(name, v); err != nil {
					fail("Error setting %s: %v", name, err)
				}
			}
			at := controls.Date(time.Now().In(loc).Year(), loc)
			pos := sun.PositionAt(at, lat, lng)
			printJSON(map[string]any{
				"time":     at.Format(time.RFC3339),
				"position": pos,
				"lights":   sun.Lights(pos),
			})
		}),
	}
	// Unset flags keep the slider defaults.
	sunCmd.Flags().Int("month", 0, "Month (1-12)")
	sunCmd.Flags().Int("day", 0, "Day of month")
	sunCmd.Flags().Int("hour", 0, "Hour (0-23)")
	sunCmd.Flags().Int("minute", 0, "Minute (0-59)")
	cli.Root().AddCommand(sunCmd)

	cli.Run()
}
