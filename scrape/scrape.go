// Package scrape reads course and video names from a lesson page.
package scrape

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"vodgrab/config"
	"vodgrab/media"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownVideo is used when the page has a course but no title parts.
const UnknownVideo = "Unknown Video"

// HTMLScraper extracts names from server rendered markup by CSS class.
type HTMLScraper struct {
	client      media.HTTPClient
	userAgent   string
	courseClass string
	titleClass  string
}

func NewHTMLScraper(cfg *config.Config, client media.HTTPClient) *HTMLScraper {
	return &HTMLScraper{
		client:      client,
		userAgent:   cfg.UserAgent,
		courseClass: cfg.ScrapeCourseClass,
		titleClass:  cfg.ScrapeTitleClass,
	}
}

// Scrape returns the Title Cased course and video names shown on pageURL.
func (s *HTMLScraper) Scrape(ctx context.Context, pageURL string) (string, string, error) {
	log.Printf("[*] Scraping details for: %s", pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", media.ErrNamesNotDetected, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("%w: %v", media.ErrNamesNotDetected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("%w: %s returned %s", media.ErrNamesNotDetected, pageURL, resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("%w: parse page: %v", media.ErrNamesNotDetected, err)
	}

	course, video, err := Extract(doc, s.courseClass, s.titleClass)
	if err != nil {
		return "", "", err
	}
	log.Printf("    [+] Detected: %s | %s", course, video)
	return course, video, nil
}

// Extract finds the course name in the first element carrying courseClass
// and joins the texts of all elements carrying titleClass into the video name.
func Extract(doc *html.Node, courseClass, titleClass string) (string, string, error) {
	var courseNode *html.Node
	var titleParts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if courseNode == nil && hasClass(n, courseClass) {
				courseNode = n
			}
			if hasClass(n, titleClass) {
				if text := collapse(textOf(n)); text != "" {
					titleParts = append(titleParts, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if courseNode == nil {
		return "", "", fmt.Errorf("%w: no element with class %q", media.ErrNamesNotDetected, courseClass)
	}
	course := collapse(textOf(courseNode))
	if course == "" {
		return "", "", fmt.Errorf("%w: course element is empty", media.ErrNamesNotDetected)
	}

	video := UnknownVideo
	if len(titleParts) > 0 {
		video = titleCase(strings.Join(titleParts, " "))
	}
	return titleCase(course), video, nil
}

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
