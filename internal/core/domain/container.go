package domain

// Container is one entry of `docker ps -a` on the managed host.
type Container struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Ports      string `json:"ports"`    // raw mapping, e.g. 0.0.0.0:2201->22/tcp
	SSHPort    int    `json:"ssh_port"` // 0 when no SSH mapping could be parsed
	Status     string `json:"status"`   // running, exited, etc.
	StatusText string `json:"status_text"`
	Image      string `json:"image"`
	CreatedAt  string `json:"created_at"`
}

// Image is one entry of `docker images` on the managed host.
type Image struct {
	ID           string `json:"id"`
	ShortID      string `json:"short_id"`
	Repository   string `json:"repository"`
	Tag          string `json:"tag"`
	Size         string `json:"size"`
	SizeBytes    int64  `json:"size_bytes"`
	CreatedSince string `json:"created_since"`
}

// CommandResult is the outcome of one remote shell command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// View names a cached listing the presentation layer renders.
type View string

const (
	ViewContainers View = "containers"
	ViewImages     View = "images"
)
