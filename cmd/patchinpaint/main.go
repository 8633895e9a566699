package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"patchinpaint/pkg/config"
	"patchinpaint/pkg/damage"
	"patchinpaint/pkg/imageio"
	"patchinpaint/pkg/inpainting"
	"patchinpaint/pkg/metrics"
	"patchinpaint/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Image to damage and repair")
	outputPath := flag.String("output", "inpainted.png", "Repaired image output path")
	configPath := flag.String("config", "config.yaml", "YAML configuration file (defaults are used if missing)")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	damagedPath := flag.String("damaged", "damaged.png", "Damaged image output path, empty to skip")
	comparePath := flag.String("compare", "", "Side-by-side damaged/repaired image output path")
	maskPath := flag.String("mask", "", "Mask image whose bright pixels are removed before repair")
	noDamage := flag.Bool("no-damage", false, "Skip the configured rectangle and noise; use with -mask")
	cropPath := flag.String("crop", "", "Side-by-side crop of the removed rectangle, original/repaired")

	patchSize := flag.Int("patch", 0, "Patch half-size")
	stride := flag.Int("stride", 0, "Dictionary stride (0 = patch half-size)")
	maxMissing := flag.Int("max-missing", 0, "Dead pixels tolerated in a dictionary atom")
	nearest := flag.Int("nearest", 0, "Fit against the N nearest atoms only (0 = all)")
	parallel := flag.Bool("parallel", false, "Fit the colour channels concurrently")
	alpha := flag.Float64("alpha", 0, "L1 regularisation strength")
	iterations := flag.Int("iterations", 0, "Maximum solver iterations")
	tolerance := flag.Float64("tol", 0, "Solver convergence tolerance")

	row := flag.Int("row", 0, "Top row of the removed rectangle")
	col := flag.Int("col", 0, "Left column of the removed rectangle")
	height := flag.Int("height", 0, "Height of the removed rectangle (<0 = to the edge)")
	width := flag.Int("width", 0, "Width of the removed rectangle (<0 = to the edge)")
	noise := flag.Float64("noise", 0, "Fraction of pixels killed at random")
	seed := flag.Int64("seed", 0, "Noise seed")

	maxDim := flag.Int("max-dim", 0, "Downscale inputs larger than this many pixels per side")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save frames while the fill runs")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory for intermediary frames")
	verbose := flag.Bool("verbose", false, "Log solver diagnostics")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Explicit flags override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "patch":
			cfg.Inpainting.PatchHalfSize = *patchSize
		case "stride":
			cfg.Inpainting.Stride = *stride
		case "max-missing":
			cfg.Inpainting.MaxMissingPerAtom = *maxMissing
		case "nearest":
			cfg.Inpainting.NearestAtoms = *nearest
		case "parallel":
			cfg.Inpainting.ParallelChannels = *parallel
		case "alpha":
			cfg.Solver.Alpha = *alpha
		case "iterations":
			cfg.Solver.MaxIterations = *iterations
		case "tol":
			cfg.Solver.Tolerance = *tolerance
		case "row":
			cfg.Damage.Row = *row
		case "col":
			cfg.Damage.Col = *col
		case "height":
			cfg.Damage.Height = *height
		case "width":
			cfg.Damage.Width = *width
		case "noise":
			cfg.Damage.NoiseRate = *noise
		case "seed":
			cfg.Damage.Seed = *seed
		case "max-dim":
			cfg.Output.MaxDimension = *maxDim
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	params, err := cfg.EngineParams()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("PATCH-BASED SPARSE INPAINTING")
	fmt.Println("================================")

	// Step 1: load
	fmt.Println("Step 1: Loading input image...")
	original, err := imageio.Load(*inputPath, cfg.Output.MaxDimension)
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}
	fmt.Printf("Loaded %s with dimensions %dx%d\n", *inputPath, original.Width, original.Height)

	// Step 2: damage
	buf := original.Clone()
	if !*noDamage {
		fmt.Println("Step 2: Removing pixels...")
		if cfg.Damage.Height != 0 && cfg.Damage.Width != 0 {
			n, err := damage.Remove(buf, cfg.Damage.Row, cfg.Damage.Col, cfg.Damage.Height, cfg.Damage.Width)
			if err != nil {
				log.Fatalf("Failed to remove region: %v", err)
			}
			fmt.Printf("Removed %d pixels at (%d, %d)\n", n, cfg.Damage.Row, cfg.Damage.Col)
		}
		if cfg.Damage.NoiseRate > 0 {
			rng := rand.New(rand.NewSource(cfg.Damage.Seed))
			n, err := damage.Noise(buf, cfg.Damage.NoiseRate, rng)
			if err != nil {
				log.Fatalf("Failed to add noise: %v", err)
			}
			fmt.Printf("Killed %d pixels at random\n", n)
		}
	}
	if *maskPath != "" {
		mask, err := imageio.LoadMask(*maskPath, buf.Width, buf.Height)
		if err != nil {
			log.Fatalf("Failed to load mask: %v", err)
		}
		n, err := damage.Apply(buf, mask)
		if err != nil {
			log.Fatalf("Failed to apply mask: %v", err)
		}
		fmt.Printf("Removed %d pixels under %s\n", n, *maskPath)
	}

	// Decoded images never contain dead pixels, so without damage or a mask
	// there is nothing to repair
	if buf.CountDead() == 0 {
		log.Fatalf("No dead pixels to repair: configure damage or pass -mask")
	}

	damaged := buf.Clone()
	deadMask := buf.DeadMask()

	if *damagedPath != "" {
		if err := imageio.Save(damaged, *damagedPath); err != nil {
			log.Printf("Warning: Failed to save damaged image: %v", err)
		}
		ext := filepath.Ext(*damagedPath)
		maskOut := strings.TrimSuffix(*damagedPath, ext) + "_mask.png"
		if err := visualization.SaveMask(damaged, maskOut); err != nil {
			log.Printf("Warning: Failed to save dead mask: %v", err)
		} else {
			fmt.Printf("Dead mask saved to %s\n", maskOut)
		}
	}

	// Step 3: inpaint
	fmt.Printf("Step 3: Inpainting %d dead pixels...\n", buf.CountDead())
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelInfo
	}
	params.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	params.Progress = inpainting.TextProgress(os.Stdout)

	var recorder *visualization.FrameRecorder
	if cfg.Output.SaveIntermediaryResults {
		recorder = visualization.NewFrameRecorder(buf, *intermediaryDir, cfg.Output.IntermediaryEvery)
		params.OnStep = recorder.OnStep
	}

	engine, err := inpainting.NewEngine(params)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	startTime := time.Now()
	if err := engine.Inpaint(buf); err != nil {
		log.Fatalf("Inpainting failed: %v", err)
	}
	processingTime := time.Since(startTime)

	if err := imageio.Save(buf, *outputPath); err != nil {
		log.Fatalf("Failed to save result: %v", err)
	}

	stats := engine.Stats()
	fmt.Printf("\nInpainting completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output image saved to: %s\n\n", *outputPath)
	fmt.Printf("Dictionary atoms:      %d\n", stats.DictionarySize)
	fmt.Printf("Patches fitted:        %d\n", stats.Iterations)
	fmt.Printf("Pixels filled:         %d\n", stats.Filled)
	fmt.Printf("Non-converged fits:    %d\n", stats.NonConverged)

	if recorder != nil {
		if recorder.Err != nil {
			log.Printf("Warning: Failed to save intermediary frames: %v", recorder.Err)
		}
		fmt.Printf("Intermediary frames:   %d in %s\n", recorder.Saved, *intermediaryDir)
	}

	if *comparePath != "" {
		if err := visualization.SaveComparison(damaged, buf, *comparePath); err != nil {
			log.Printf("Warning: Failed to save comparison: %v", err)
		} else {
			fmt.Printf("Comparison saved to:   %s\n", filepath.Clean(*comparePath))
		}
	}

	if *cropPath != "" && !*noDamage && cfg.Damage.Height != 0 && cfg.Damage.Width != 0 {
		err := visualization.SaveRegionComparison(original, buf,
			cfg.Damage.Row, cfg.Damage.Col, cfg.Damage.Height, cfg.Damage.Width, *cropPath)
		if err != nil {
			log.Printf("Warning: Failed to save crop: %v", err)
		} else {
			fmt.Printf("Crop saved to:         %s\n", filepath.Clean(*cropPath))
		}
	}

	// Metrics against the undamaged input, over the removed pixels only
	if stats.Filled > 0 {
		m, err := metrics.Compare(original, buf, deadMask)
		if err != nil {
			log.Printf("Warning: Failed to compute metrics: %v", err)
			return
		}
		fmt.Printf("\nReconstruction Metrics (removed pixels):\n")
		fmt.Printf("=======================================\n")
		fmt.Printf("Root Mean Square Error (RMSE): %.6f\n", m.RMSE)
		fmt.Printf("Mean Absolute Error (MAE): %.6f\n", m.MAE)
		fmt.Printf("Peak Signal-to-Noise Ratio (PSNR): %.2f dB\n", m.PSNR)
		fmt.Printf("Structural Similarity Index (SSIM): %.3f\n", m.SSIM)
		fmt.Printf("Entropy Difference: %.3f\n", m.EntropyDiff)
		fmt.Printf("Mutual Information: %.3f\n", m.MutualInformation)
		fmt.Printf("Edge Preservation: %.3f\n", m.EdgePreservation)
	}
}
