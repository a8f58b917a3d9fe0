package client

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
	units "github.com/docker/go-units"
)

const shortIDLen = 12

func renderImages(w io.Writer, images []protocol.ImageInfo, now time.Time) error {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "IMAGE ID\tREPOSITORY:TAG\tSIZE\tCREATED")
	for _, img := range images {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			shortID(img.ID),
			img.Repository+":"+img.Tag,
			units.HumanSize(float64(img.Size)),
			createdAgo(img.Created, now),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d image(s)\n\n", len(images))
	return nil
}

func renderContainers(w io.Writer, containers []protocol.ContainerInfo) error {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "CONTAINER ID\tNAME\tIMAGE\tSTATE\tSTATUS")
	for _, c := range containers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(c.ID), c.Name, c.Image, c.State, c.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d container(s)\n\n", len(containers))
	return nil
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// createdAgo renders a unix timestamp the way the docker CLI does.
func createdAgo(created int64, now time.Time) string {
	if created <= 0 {
		return "N/A"
	}
	return units.HumanDuration(now.Sub(time.Unix(created, 0))) + " ago"
}
