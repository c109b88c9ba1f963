// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Wsiinfo prints the surface capabilities, formats and
// present modes that the layer would advertise for a given
// windowing backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/hal/null"
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
	"github.com/gviegas/wsishim/wsi/headless"
	"github.com/gviegas/wsishim/wsi/wayland"
	"github.com/gviegas/wsishim/wsi/x11"
)

var (
	backend string
	width   int
	height  int
)

func main() {
	root := &cobra.Command{
		Use:           "wsiinfo",
		Short:         "Inspect what the presentation layer advertises",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&backend, "backend", "b", "headless", "windowing backend (headless, wayland, x11)")
	root.PersistentFlags().IntVar(&width, "width", 1280, "surface width")
	root.PersistentFlags().IntVar(&height, "height", 720, "surface height")

	root.AddCommand(
		&cobra.Command{
			Use:   "caps",
			Short: "Print surface capabilities",
			RunE:  func(*cobra.Command, []string) error { return runCaps() },
		},
		&cobra.Command{
			Use:   "formats",
			Short: "Print presentable formats",
			RunE:  func(*cobra.Command, []string) error { return runFormats() },
		},
		&cobra.Command{
			Use:   "modes",
			Short: "Print present modes and their compatibilities",
			RunE:  func(*cobra.Command, []string) error { return runModes() },
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wsiinfo:", err)
		os.Exit(1)
	}
}

func properties() (wsi.SurfaceProperties, func(), error) {
	size := func() (int, int) { return width, height }
	// Without a window system connection, assume every
	// fourcc/modifier pair scans out.
	query := func(drm.FourCC, drm.Modifier) bool { return true }
	switch backend {
	case "headless":
		var drv hal.Driver
		for _, d := range hal.Drivers() {
			if d.Name() == "null" {
				drv = d
				break
			}
		}
		if drv == nil {
			drv = &null.Driver{}
		}
		dev, err := drv.Open()
		if err != nil {
			return nil, nil, err
		}
		return headless.NewSurface(dev, width, height).Properties(), drv.Close, nil
	case "wayland":
		p, err := wayland.NewProperties(size, query)
		return p, func() {}, err
	case "x11":
		p, err := x11.NewProperties(size, query)
		return p, func() {}, err
	}
	return nil, nil, fmt.Errorf("unknown backend %q", backend)
}

func runCaps() error {
	props, done, err := properties()
	if err != nil {
		return err
	}
	defer done()
	caps, err := props.Capabilities()
	if err != nil {
		return err
	}
	fmt.Printf("image count:    %d-%d\n", caps.MinImageCount, caps.MaxImageCount)
	fmt.Printf("current extent: %dx%d\n", caps.CurrentExtent.Width, caps.CurrentExtent.Height)
	fmt.Printf("extent range:   %dx%d to %dx%d\n",
		caps.MinExtent.Width, caps.MinExtent.Height,
		caps.MaxExtent.Width, caps.MaxExtent.Height)
	fmt.Printf("alpha modes:    %v\n", caps.SupportedAlpha)
	sc := props.ScalingCaps()
	fmt.Printf("scaling:        %v (gravity %v/%v)\n", sc.Scaling, sc.GravityX, sc.GravityY)
	return nil
}

func runFormats() error {
	props, done, err := properties()
	if err != nil {
		return err
	}
	defer done()
	for _, f := range props.Formats() {
		if spec, ok := drm.SpecFor(f); ok {
			fmt.Printf("%-12v %d bpp\n", f, spec.BPP)
		} else {
			fmt.Printf("%-12v\n", f)
		}
	}
	return nil
}

func runModes() error {
	props, done, err := properties()
	if err != nil {
		return err
	}
	defer done()
	for _, m := range props.PresentModes() {
		fmt.Printf("%-8v compatible with %v\n", m, props.CompatibleModes(m))
	}
	return nil
}
