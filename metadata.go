package cactusplot

// Presentation options that are not tied to a dataset.
type PlotOptions struct {
	Title  string
	XLabel string
	YLabel string
	// Fraction of the data span added on each side when axes are
	// autoscaled.
	Padding float64
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Title:   "cactusplot",
		XLabel:  "x",
		YLabel:  "y",
		Padding: 0.05,
	}
}

// Sent to every client when it connects. SessionID changes on every server
// start so that clients can tell a restart from a reconnect.
type Metadata struct {
	SessionID       string
	ProtocolVersion byte
	PlotOptions     PlotOptions
}
