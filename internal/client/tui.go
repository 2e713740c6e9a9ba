package client

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"dappbridge/internal/constants"
)

const (
	ColorReset  = constants.ColorReset
	ColorBold   = constants.ColorBold
	ColorDim    = constants.ColorDim
	ColorCyan   = constants.ColorCyan
	ColorGreen  = constants.ColorGreen
	ColorYellow = constants.ColorYellow
	ColorRed    = constants.ColorRed
)

func PrintBanner() {
	fmt.Println()
	fmt.Printf("  %s%s%s%s %sv%s%s\n", ColorBold, ColorCyan, constants.AppName, ColorReset, ColorBold, constants.Version, ColorReset)
	fmt.Printf("  %sdApp request bridge%s\n", ColorDim, ColorReset)
	fmt.Println()
}

func PrintHint(text string) {
	fmt.Printf("  %s%s%s\n", ColorDim, text, ColorReset)
}

func PrintField(label, value, valueColor string) {
	fmt.Printf("  %s%-12s%s %s%s%s\n", ColorDim, label, ColorReset, valueColor, value, ColorReset)
}

func PrintSep() {
	fmt.Printf("  %s%s%s\n", ColorDim, strings.Repeat("─", 50), ColorReset)
}

// QRCode renders content as a terminal QR code.
func QRCode(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

func PrintQR(content string) {
	art, err := QRCode(content)
	if err != nil {
		PrintHint("QR code unavailable: " + err.Error())
		return
	}
	for _, line := range strings.Split(strings.TrimRight(art, "\n"), "\n") {
		fmt.Printf("  %s\n", line)
	}
}
