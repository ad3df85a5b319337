package console

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for console regions.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	sentBox    lipgloss.Style
	sentTitle  lipgloss.Style
	replyBox   lipgloss.Style
	replyTitle lipgloss.Style
	dropBox    lipgloss.Style
	dropTitle  lipgloss.Style
	passBox    lipgloss.Style
	passTitle  lipgloss.Style
	errorBox   lipgloss.Style
	errorTitle lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
}

func titleStyle(fg, bg string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(fg)).
		Background(lipgloss.Color(bg)).
		Padding(0, 1)
}

func boxStyle(border lipgloss.Border, color, bg string) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(lipgloss.Color(color)).
		Background(lipgloss.Color(bg)).
		Padding(0, 1)
}

// defaultTheme defines the terminal palette used by the console.
func defaultTheme() theme {
	return theme{
		header:     titleStyle("230", "24"),
		headerMeta: lipgloss.NewStyle().Foreground(lipgloss.Color("153")),
		divider:    lipgloss.NewStyle().Foreground(lipgloss.Color("67")),
		sentBox:    boxStyle(lipgloss.DoubleBorder(), "214", "235"),
		sentTitle:  titleStyle("16", "214"),
		replyBox:   boxStyle(lipgloss.DoubleBorder(), "44", "234"),
		replyTitle: titleStyle("16", "44"),
		dropBox: boxStyle(lipgloss.RoundedBorder(), "244", "236").
			Foreground(lipgloss.Color("250")),
		dropTitle: titleStyle("16", "244"),
		passBox: boxStyle(lipgloss.RoundedBorder(), "114", "236").
			Foreground(lipgloss.Color("252")),
		passTitle: titleStyle("16", "114"),
		errorBox: boxStyle(lipgloss.DoubleBorder(), "203", "52").
			Foreground(lipgloss.Color("203")),
		errorTitle: titleStyle("231", "160"),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		statusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		inputLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")),
		input: boxStyle(lipgloss.RoundedBorder(), "173", "236"),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("67")).
			Background(lipgloss.Color("233")).
			Padding(0, 1),
	}
}
