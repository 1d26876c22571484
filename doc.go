/*
Package facecap collects face samples from a video source. Every frame is
converted to grayscale and passed through a pretrained frontal face cascade
classifier; the detected regions are cropped and saved as numbered image files
(face.<id>.<n>.jpg), ready to be used as the training set of a face recognizer.

The package provides a command line interface, supporting various flags for tuning
the detection and the sample output. To check the supported commands type:

	$ facecap --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"fmt"
		"os"

		"github.com/cyclopcam/logs"
		"github.com/esimov/facecap"
		"github.com/esimov/facecap/camera"
	)

	func main() {
		log, _ := logs.NewLog()
		det, err := facecap.NewPigoDetector("facefinder", facecap.DefaultPigoParams())
		if err != nil {
			log.Criticalf("%v", err)
			os.Exit(1)
		}
		defer det.Close()

		dev, err := camera.Open(0, 640, 480)
		if err != nil {
			log.Criticalf("%v", err)
			os.Exit(1)
		}
		defer dev.Close()

		sess := facecap.NewSession("1", "samples")
		if _, err := sess.Prepare(true); err != nil {
			log.Criticalf("%v", err)
			os.Exit(1)
		}

		p := facecap.NewProcessor(log, os.Stdout)
		sum, err := p.Run(context.Background(), dev, det, facecap.NoDisplay{}, sess)
		if err != nil {
			fmt.Printf("Capture stopped: %s", err.Error())
		}
		fmt.Printf("%d samples saved\n", sum.Saved)
	}
*/
package facecap
