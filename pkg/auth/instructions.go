package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieExtractionGuide prints step-by-step instructions for copying the X session cookies
func WriteCookieExtractionGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "X SESSION COOKIE GUIDE")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "xscraper drives a browser with your logged in X session.")
	fmt.Fprintln(w, "It needs two cookies from a browser where you are logged in:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Open https://x.com and log in")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   Safari: enable the Develop menu first, then Cmd+Option+I")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Application (Chrome) or Storage (Firefox) tab")
	fmt.Fprintln(w, "   Expand Cookies and select https://x.com")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Copy these values")
	fmt.Fprintln(w, "   auth_token   40 hex characters, marks the logged in session")
	fmt.Fprintln(w, "   ct0          the CSRF token, needed for follow/unfollow")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Copy only the value, without quotes or semicolons.")
	fmt.Fprintln(w, "Logging out in the browser invalidates auth_token.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "WARNING: auth_token grants full access to the account.")
	fmt.Fprintln(w, "Never share it. xscraper keeps it in the system keychain or an encrypted file.")
	fmt.Fprintln(w, line)
}

// WriteQuickExtractGuide prints the condensed version
func WriteQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "Quick guide: F12 > Application > Cookies > https://x.com > copy auth_token and ct0")
	fmt.Fprintln(w, "Type 'help' for detailed instructions")
}
