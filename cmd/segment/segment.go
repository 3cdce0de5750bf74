package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/landcover/pkg/regions"
	"github.com/cyclopcam/landcover/pkg/render"
	"github.com/cyclopcam/landcover/pkg/seg"
	"github.com/cyclopcam/landcover/server"
	"github.com/cyclopcam/logs"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("segment", "Segment an aerial image and measure per-class areas")
	input := parser.String("i", "input", &argparse.Options{Help: "Input image (JPEG/PNG)", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Output filename prefix. Default is the input filename without extension", Default: ""})
	modelFile := parser.String("m", "model", &argparse.Options{Help: "Model config JSON. Empty uses the built in aerial land cover model", Default: ""})
	tileSize := parser.Int("t", "tile", &argparse.Options{Help: "Tile size. 0 uses the model's native size", Default: 0})
	subdivisions := parser.Int("s", "subdivisions", &argparse.Options{Help: "Blending overlap factor (even, >= 2)", Default: 2})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Concurrent inference workers. -1 uses all cores", Default: -1})
	fast := parser.Flag("f", "fast", &argparse.Options{Help: "Disjoint-tile baseline: faster, but with seams at tile boundaries", Default: false})
	scaleFactor := parser.Float("", "scale", &argparse.Options{Help: "Physical area of one pixel", Default: 0.25})
	connectivity := parser.Int("", "connectivity", &argparse.Options{Help: "Component connectivity: 4 or 8", Default: 8})
	classList := parser.String("c", "classes", &argparse.Options{Help: "Comma-separated class ids to measure. Empty measures all", Default: ""})
	alpha := parser.Float("a", "alpha", &argparse.Options{Help: "Overlay opacity, 0..1", Default: 0.5})
	interactive := parser.Flag("", "interactive", &argparse.Options{Help: "Keep prompting for class selections after segmenting", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	model, palette, err := server.LoadModel(*modelFile)
	check(err)
	defer model.Close()

	conn := regions.Connect8
	if *connectivity == 4 {
		conn = regions.Connect4
	} else if *connectivity != 8 {
		fmt.Printf("Connectivity must be 4 or 8, not %v\n", *connectivity)
		os.Exit(1)
	}

	body, err := os.ReadFile(*input)
	check(err)
	raster, err := cimg.Decompress(body)
	check(err)
	if raster.NChan() != 3 {
		fmt.Printf("Image must be RGB, not %v channels\n", raster.NChan())
		os.Exit(1)
	}
	img, err := seg.FloatImageFromCImage(raster)
	check(err)

	prefix := *output
	if prefix == "" {
		prefix = strings.TrimSuffix(*input, ".jpg")
		prefix = strings.TrimSuffix(prefix, ".jpeg")
		prefix = strings.TrimSuffix(prefix, ".png")
	}

	var labels *seg.LabelMap
	if *fast {
		labels, err = seg.PredictTiled(logger, img, model, *tileSize)
		check(err)
	} else {
		opt := seg.BlendOptions{
			TileSize:     *tileSize,
			Subdivisions: *subdivisions,
			Workers:      *workers,
			Progress: func(done, total int) {
				fmt.Printf("\rBlending tiles... %v/%v", done, total)
			},
		}
		scores, err := seg.ReconstructSmooth(logger, img, model, opt)
		check(err)
		fmt.Printf("\n")
		labels = scores.ArgmaxLabels()
	}

	// The baseline crops the image to a whole number of tiles
	if labels.Width != raster.Width || labels.Height != raster.Height {
		raster = cropImage(raster, labels.Width, labels.Height)
	}

	overlay, err := render.Overlay(raster, labels, palette, float32(*alpha))
	check(err)
	check(writeJpeg(prefix+"-overlay.jpg", overlay))
	fmt.Printf("Wrote %v-overlay.jpg\n", prefix)

	names := model.Config().Classes
	selection := allClassIDs(len(names))
	if *classList != "" {
		selection, err = parseClassIDs(*classList)
		check(err)
	}

	measure := func(ids []int) {
		byClass, err := regions.ComponentsByClass(labels, ids, conn, nil)
		check(err)
		agg, err := regions.NewAreaAggregator(*scaleFactor, names)
		check(err)
		printReport(agg.Aggregate(byClass))

		mask := regions.MaskOf(labels, ids...)
		maskFile := fmt.Sprintf("%v-mask-%v.jpg", prefix, idsLabel(ids))
		check(writeJpeg(maskFile, render.MaskToImage(mask)))
		fmt.Printf("Wrote %v\n", maskFile)
	}

	measure(selection)

	if !*interactive {
		return
	}

	// Selection loop: await a selection, process it, display it, repeat.
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("\nClasses:\n")
		for id, name := range names {
			fmt.Printf("  %v: %v\n", id, name)
		}
		fmt.Printf("Select class ids (comma separated), 'all', or 'q' to quit: ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "q" || line == "quit":
			return
		case line == "" || line == "all":
			measure(allClassIDs(len(names)))
		default:
			ids, err := parseClassIDs(line)
			if err != nil {
				fmt.Printf("%v\n", err)
				continue
			}
			measure(ids)
		}
	}
}

func allClassIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func parseClassIDs(s string) ([]int, error) {
	ids := []int{}
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("Invalid class id '%v'", strings.TrimSpace(part))
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func idsLabel(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "+")
}

func printReport(report *regions.AreaReport) {
	fmt.Printf("\n%-4v %-12v %10v %12v %12v %12v\n", "ID", "Class", "Regions", "Pixels", "Area", "Max region")
	for _, c := range report.Classes {
		fmt.Printf("%-4v %-12v %10v %12v %12.2f %12.2f\n", c.ClassID, c.Name, len(c.Components), c.TotalPixels, c.TotalArea, c.MaxArea)
	}
}

func writeJpeg(filename string, img *cimg.Image) error {
	jpg, err := cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling444, 95, 0))
	if err != nil {
		return err
	}
	return os.WriteFile(filename, jpg, 0644)
}

func cropImage(src *cimg.Image, width, height int) *cimg.Image {
	out := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		copy(out.Pixels[y*out.Stride:y*out.Stride+width*3], src.Pixels[y*src.Stride:y*src.Stride+width*3])
	}
	return out
}
