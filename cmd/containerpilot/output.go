package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/docker/docker/pkg/stringid"

	"github.com/melih/containerpilot/internal/core/domain"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	runningStyle = cellStyle.Foreground(lipgloss.Color("42"))
	stoppedStyle = cellStyle.Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func shortID(id string) string {
	return stringid.TruncateID(id)
}

func renderContainers(containers []domain.Container, host string) string {
	rows := make([][]string, 0, len(containers))
	for _, c := range containers {
		ssh := "-"
		if c.SSHPort > 0 {
			ssh = "ssh -p " + strconv.Itoa(c.SSHPort) + " root@" + host
		}
		rows = append(rows, []string{shortID(c.ID), c.Name, c.Status, c.StatusText, c.Image, ssh})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "STATE", "STATUS", "IMAGE", "SSH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2 && containers[row].Status == "running":
				return runningStyle
			case col == 2:
				return stoppedStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func renderImages(images []domain.Image) string {
	rows := make([][]string, 0, len(images))
	for _, img := range images {
		rows = append(rows, []string{img.ShortID, img.Repository, img.Tag, img.Size, img.CreatedSince})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "REPOSITORY", "TAG", "SIZE", "CREATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
