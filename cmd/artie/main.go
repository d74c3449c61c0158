package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artie-scraper/artie/internal/config"
	"github.com/artie-scraper/artie/internal/screenscraper"
	"github.com/artie-scraper/artie/pkg/batch"
	"github.com/artie-scraper/artie/pkg/cache"
	"github.com/artie-scraper/artie/pkg/client"
	"github.com/artie-scraper/artie/pkg/logging"
	"github.com/artie-scraper/artie/pkg/remote"
)

func main() {
	configPath := flag.String("config", "config.json", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LoggingConfig())

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Scrape run failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	store := cache.NewStore(cache.DefaultRegions(),
		cache.WithCacheDir(cfg.CacheDir),
		cache.WithLogger(logging.NewLogger("cache")),
	)
	if err := store.LoadFromDisk(cache.RegionRemote); err != nil {
		logger.Warn().Err(err).Msg("Starting with a cold cache")
	}
	defer func() {
		if err := store.SaveToDisk(cache.RegionRemote); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist cache")
		}
	}()

	fetcher := client.NewFetcher(client.Config{
		Store:    store,
		Classify: screenscraper.Classifier,
		Logger:   logging.NewLogger("client"),
	})

	creds := screenscraper.Credentials{
		DevID:       cfg.Credentials.DevID,
		DevPassword: cfg.Credentials.DevPassword,
		Username:    cfg.Credentials.Username,
		Password:    cfg.Credentials.Password,
	}

	accessor := remote.NewAccessor(remote.Config{
		Store:    store,
		Fetcher:  fetcher,
		Endpoint: endpointFor(creds),
		Caller:   cfg.Credentials.Username,
		TTLs: map[string]time.Duration{
			"gameInfo":   time.Hour,
			"searchGame": 30 * time.Minute,
			"userInfo":   5 * time.Minute,
			"infraInfo":  5 * time.Minute,
		},
		Logger: logging.NewLogger("remote"),
	})

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	userMax := negotiateUserThreads(ctx, accessor, cfg.Threads, logger)

	items := buildItems(cfg, store, accessor, creds, logger)
	if len(items) == 0 {
		logger.Info().Msg("No ROMs to scrape")
		return nil
	}

	// Pace dispatch to the server's current load; the infra document is
	// cached, so the later Negotiate call reuses it.
	var dispatchDelay time.Duration
	if infra, err := accessor.Call(ctx, "infraInfo", nil); err == nil {
		dispatchDelay = screenscraper.RecommendedDelay(infra)
		logger.Info().Dur("dispatch_delay", dispatchDelay).Msg("Pacing dispatch to server load")
	}

	orchestrator := batch.NewOrchestrator(logging.NewLogger("batch"))
	summary, err := orchestrator.Run(ctx, items, batch.Options{
		Concurrency:   userMax,
		DispatchDelay: dispatchDelay,
		Negotiate: func(ctx context.Context) (int, error) {
			infra, err := accessor.Call(ctx, "infraInfo", nil)
			if err != nil {
				return 0, err
			}
			return screenscraper.OptimalThreads(infra, userMax), nil
		},
		OnProgress: func(completed, total int, last batch.Result) {
			event := logger.Info()
			if !last.Succeeded {
				event = logger.Warn().Str("error_kind", string(last.Kind))
			}
			event.
				Str("rom", last.Item).
				Int("completed", completed).
				Int("total", total).
				Msg("Scrape progress")
		},
	})
	if err != nil {
		return err
	}

	stats := store.Stats()
	logger.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("cancelled", summary.Cancelled).
		Bool("halted", summary.Halted).
		Dur("elapsed", summary.Elapsed).
		Float64("cache_hit_rate", stats.HitRatePercent).
		Msg("Scrape run finished")

	if summary.Halted {
		return fmt.Errorf("run halted: API quota exceeded")
	}
	return nil
}

// endpointFor maps accessor operations onto ScreenScraper URLs.
func endpointFor(creds screenscraper.Credentials) remote.Endpoint {
	return func(op string, args map[string]string) (string, error) {
		switch op {
		case "gameInfo":
			size, err := strconv.ParseInt(args["romtaille"], 10, 64)
			if err != nil {
				return "", fmt.Errorf("invalid rom size %q: %w", args["romtaille"], err)
			}
			return screenscraper.GameInfoURL(creds, screenscraper.ROMQuery{
				SystemID: args["systemeid"],
				Type:     args["romtype"],
				Name:     args["romnom"],
				Size:     size,
			})
		case "searchGame":
			return screenscraper.SearchURL(creds, args["recherche"], args["systemeid"])
		case "userInfo":
			return screenscraper.UserInfoURL(creds)
		case "infraInfo":
			return screenscraper.InfraInfoURL(creds)
		default:
			return "", fmt.Errorf("unknown operation %q", op)
		}
	}
}

// negotiateUserThreads caps the configured worker count by the account's
// advertised thread allowance. Lookup failures keep the configured count.
func negotiateUserThreads(ctx context.Context, accessor *remote.Accessor, configured int, logger zerolog.Logger) int {
	user, err := accessor.Call(ctx, "userInfo", nil)
	if err != nil {
		logger.Warn().Err(err).Int("threads", configured).Msg("User info unavailable, keeping configured thread count")
		return configured
	}
	allowed := screenscraper.UserMaxThreads(user, configured)
	if allowed < configured {
		logger.Info().Int("configured", configured).Int("allowed", allowed).Msg("Reducing thread count to account limit")
		return allowed
	}
	return configured
}

// buildItems walks the configured system directories and produces one
// batch item per ROM that still needs scraping.
func buildItems(cfg *config.Config, store *cache.Store, accessor *remote.Accessor, creds screenscraper.Credentials, logger zerolog.Logger) []batch.Item {
	var items []batch.Item
	for dirName, systemID := range cfg.Systems {
		systemDir := filepath.Join(cfg.RomsPath, dirName)
		entries, err := os.ReadDir(systemDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", systemDir).Msg("Skipping unreadable system directory")
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") || name == "media" {
				continue
			}
			romPath := filepath.Join(systemDir, name)
			if alreadyScraped(cfg, store, romPath) {
				logger.Debug().Str("rom", name).Msg("Already scraped, skipping")
				continue
			}
			sysID := systemID
			items = append(items, batch.Item{
				ID: name,
				Do: func(ctx context.Context) error {
					return scrapeROM(ctx, cfg, accessor, creds, sysID, romPath)
				},
			})
		}
	}
	return items
}

// scrapeROM fetches game metadata for one ROM and writes the enabled
// artwork and synopsis next to it.
func scrapeROM(ctx context.Context, cfg *config.Config, accessor *remote.Accessor, creds screenscraper.Credentials, systemID, romPath string) error {
	info, err := os.Stat(romPath)
	if err != nil {
		return fmt.Errorf("reading rom: %w", err)
	}

	game, err := accessor.Call(ctx, "gameInfo", map[string]string{
		"systemeid": systemID,
		"romtype":   detectROMType(romPath, info.IsDir()),
		"romnom":    filepath.Base(romPath),
		"romtaille": strconv.FormatInt(info.Size(), 10),
	})
	if err != nil {
		return err
	}

	jeu := game.Section("jeu")
	if len(jeu) == 0 {
		// The filename lookup came back empty; fall back to a name
		// search before giving up on the ROM.
		jeu, err = searchFallback(ctx, accessor, systemID, romPath)
		if err != nil {
			return err
		}
	}
	medias, _ := jeu["medias"].([]any)
	src := mediaSource{
		creds:    creds,
		medias:   medias,
		systemID: systemID,
		gameID:   gameIdentifier(jeu),
	}

	if cfg.Content.Box.Enabled {
		if err := saveMedia(ctx, cfg, accessor, src, cfg.Content.Box, mediaPath(cfg, romPath, "box")); err != nil {
			return err
		}
	}
	if cfg.Content.Preview.Enabled {
		if err := saveMedia(ctx, cfg, accessor, src, cfg.Content.Preview, mediaPath(cfg, romPath, "preview")); err != nil {
			return err
		}
	}
	if cfg.Content.Synopsis.Enabled {
		if text := screenscraper.Synopsis(jeu, cfg.Content.Synopsis.Lang); text != "" {
			if err := writeFile(mediaPath(cfg, romPath, "synopsis"), []byte(text)); err != nil {
				return err
			}
		}
	}
	return nil
}

// searchFallback resolves a ROM by cleaned name when the filename lookup
// found nothing, returning the best-matching game object.
func searchFallback(ctx context.Context, accessor *remote.Accessor, systemID, romPath string) (map[string]any, error) {
	name := screenscraper.CleanROMName(romPath)
	results, err := accessor.Call(ctx, "searchGame", map[string]string{
		"recherche": name,
		"systemeid": systemID,
	})
	if err != nil {
		return nil, err
	}
	match := screenscraper.BestMatch(results, name)
	if match == nil {
		return nil, &client.Error{
			Kind:    client.KindNotFound,
			Message: fmt.Sprintf("no game found for %q", name),
		}
	}
	return match, nil
}

// mediaSource carries everything needed to resolve a slot's download URL
// for one game.
type mediaSource struct {
	creds    screenscraper.Credentials
	medias   []any
	systemID string
	gameID   string
}

// mediaSourceURL picks the slot's download URL: a region-priority match in
// the game's media list, else the direct mediaJeu endpoint when the game
// id is known.
func mediaSourceURL(src mediaSource, slot config.MediaSlot, regions []string) (string, error) {
	mediaURL, err := screenscraper.MediaURLByRegion(src.medias, slot.Type, regions)
	if err == nil {
		return mediaURL, nil
	}
	if src.gameID == "" {
		return "", err
	}
	return screenscraper.MediaDownloadURL(src.creds, src.systemID, src.gameID, slot.Type)
}

// gameIdentifier extracts a game's id, which the API returns either as a
// string or a JSON number.
func gameIdentifier(jeu map[string]any) string {
	switch id := jeu["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}

// saveMedia resolves one artwork slot and downloads it.
func saveMedia(ctx context.Context, cfg *config.Config, accessor *remote.Accessor, src mediaSource, slot config.MediaSlot, dest string) error {
	mediaURL, err := mediaSourceURL(src, slot, cfg.Regions)
	if err != nil {
		return &client.Error{Kind: client.KindNotFound, Message: err.Error()}
	}
	if slot.Width > 0 && slot.Height > 0 {
		mediaURL, err = screenscraper.WithDimensions(mediaURL, slot.Width, slot.Height)
		if err != nil {
			return err
		}
	}
	data, err := accessor.CallRaw(ctx, mediaURL)
	if err != nil {
		return err
	}
	return writeFile(dest, data)
}

// mediaPath places slot output under <system dir>/media/<slot>/.
func mediaPath(cfg *config.Config, romPath, slot string) string {
	base := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
	ext := ".png"
	if slot == "synopsis" {
		ext = ".txt"
	}
	return filepath.Join(filepath.Dir(romPath), "media", slot, base+ext)
}

// alreadyScraped reports whether every enabled slot already has output
// for the ROM. ROMs with nothing enabled are never considered done.
func alreadyScraped(cfg *config.Config, store *cache.Store, romPath string) bool {
	enabled := false
	if cfg.Content.Box.Enabled {
		enabled = true
		if !scraped(store, mediaPath(cfg, romPath, "box")) {
			return false
		}
	}
	if cfg.Content.Preview.Enabled {
		enabled = true
		if !scraped(store, mediaPath(cfg, romPath, "preview")) {
			return false
		}
	}
	if cfg.Content.Synopsis.Enabled {
		enabled = true
		if !scraped(store, mediaPath(cfg, romPath, "synopsis")) {
			return false
		}
	}
	return enabled
}

// scraped probes whether a slot file already exists, memoizing the
// answer in the file-probe region.
func scraped(store *cache.Store, path string) bool {
	key := cache.DeriveKey("fileProbe", map[string]string{"path": path})
	if v, err := store.Get(cache.RegionFileProbe, key); err == nil {
		if exists, ok := v.(bool); ok {
			return exists
		}
	}
	_, err := os.Stat(path)
	exists := err == nil
	_ = store.Set(cache.RegionFileProbe, key, exists, 0)
	return exists
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating media dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

var isoExtensions = map[string]struct{}{
	".iso": {}, ".cue": {}, ".bin": {}, ".img": {},
	".mdf": {}, ".nrg": {}, ".cdi": {}, ".gdi": {},
}

// detectROMType classifies a ROM path for the lookup query.
func detectROMType(path string, isDir bool) string {
	if isDir {
		return "folder"
	}
	if _, ok := isoExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return "iso"
	}
	return "rom"
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server stopped")
	}
}
