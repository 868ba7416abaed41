// Package fonts maps font family names to usable TTF files. Resolution
// checks a shared download cache, then the local font assets, then falls
// back to downloading from the Google Fonts catalog — guarded by an
// advisory lock file so concurrent worker processes download a family at
// most once. The lock protocol is best effort (marker files are not atomic
// on every filesystem); the default-font fallback makes that acceptable.
package fonts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultCatalogURL = "https://www.googleapis.com/webfonts/v1/webfonts"

type Resolver struct {
	CacheDir    string // writable, shared across worker processes
	LocalDir    string // read-only local font assets
	CatalogFile string // cached catalog JSON
	APIKey      string
	DefaultFont string // returned on every soft failure

	// CatalogURL and HTTP are overridable for tests.
	CatalogURL string
	HTTP       *http.Client

	LockTimeout time.Duration
	LockPoll    time.Duration
}

func NewResolver(cacheDir, localDir, catalogFile, apiKey, defaultFont string) *Resolver {
	return &Resolver{
		CacheDir:    cacheDir,
		LocalDir:    localDir,
		CatalogFile: catalogFile,
		APIKey:      apiKey,
		DefaultFont: defaultFont,
		CatalogURL:  defaultCatalogURL,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		LockTimeout: 30 * time.Second,
		LockPoll:    500 * time.Millisecond,
	}
}

// Resolve returns a font file path for the family. Missing credentials,
// unknown families and download failures all degrade to the default font;
// only a lock-wait timeout surfaces as an error, and the caller is expected
// to fall back to the default font then too.
func (r *Resolver) Resolve(family string) (string, error) {
	filename := family
	if !strings.HasSuffix(strings.ToLower(filename), ".ttf") {
		filename += ".ttf"
	}

	cachedPath := filepath.Join(r.CacheDir, filename)
	if fileExists(cachedPath) {
		return cachedPath, nil
	}
	localPath := filepath.Join(r.LocalDir, filename)
	if fileExists(localPath) {
		return localPath, nil
	}

	if err := os.MkdirAll(r.CacheDir, 0755); err != nil {
		return r.DefaultFont, nil
	}

	lockPath := cachedPath + ".lock"
	if err := r.acquireLock(lockPath); err != nil {
		return "", fmt.Errorf("font %s: %w", filename, err)
	}
	defer func() {
		os.Remove(lockPath)
		log.Printf("[Fonts] Released lock for %s", filename)
	}()

	// Another process may have finished the download while we waited.
	if fileExists(cachedPath) {
		return cachedPath, nil
	}
	log.Printf("[Fonts] Acquired lock for %s", filename)

	if r.APIKey == "" {
		log.Printf("[Fonts] %q not found locally and no catalog API key is set, using default font", family)
		return r.DefaultFont, nil
	}

	fontURL, ok := r.lookupCatalog(family)
	if !ok {
		log.Printf("[Fonts] %q not found in the font catalog, using default font", family)
		return r.DefaultFont, nil
	}

	if err := r.download(fontURL, cachedPath); err != nil {
		log.Printf("[Fonts] Download of %q failed, using default font: %v", family, err)
		return r.DefaultFont, nil
	}

	log.Printf("[Fonts] Downloaded %q to cache", family)
	return cachedPath, nil
}

// acquireLock creates the lock marker, polling while another process holds
// it, up to LockTimeout.
func (r *Resolver) acquireLock(lockPath string) error {
	deadline := time.Now().Add(r.LockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for font lock")
		}
		time.Sleep(r.LockPoll)
	}
}

// catalog maps family name -> variant name -> file URL, mirroring the
// Google Fonts API response.
type catalog map[string]map[string]string

func (r *Resolver) lookupCatalog(family string) (string, bool) {
	cat := r.loadCatalogFile()

	if len(cat) == 0 {
		fetched, err := r.fetchCatalog()
		if err != nil {
			log.Printf("[Fonts] Could not fetch font catalog: %v", err)
			return "", false
		}
		cat = fetched
		r.saveCatalogFile(cat)
	}

	files, ok := cat[family]
	if !ok || len(files) == 0 {
		return "", false
	}
	if u, ok := files["regular"]; ok {
		return u, true
	}
	for _, u := range files {
		return u, true
	}
	return "", false
}

func (r *Resolver) loadCatalogFile() catalog {
	data, err := os.ReadFile(r.CatalogFile)
	if err != nil {
		return nil
	}
	var cat catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		log.Printf("[Fonts] Font catalog cache is corrupt, refetching")
		return nil
	}
	return cat
}

func (r *Resolver) saveCatalogFile(cat catalog) {
	if err := os.MkdirAll(filepath.Dir(r.CatalogFile), 0755); err != nil {
		return
	}
	data, err := json.Marshal(cat)
	if err != nil {
		return
	}
	_ = os.WriteFile(r.CatalogFile, data, 0644)
}

func (r *Resolver) fetchCatalog() (catalog, error) {
	resp, err := r.HTTP.Get(r.CatalogURL + "?key=" + url.QueryEscape(r.APIKey))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog request returned %s", resp.Status)
	}

	var body struct {
		Items []struct {
			Family string            `json:"family"`
			Files  map[string]string `json:"files"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	cat := make(catalog, len(body.Items))
	for _, item := range body.Items {
		cat[item.Family] = item.Files
	}
	return cat, nil
}

func (r *Resolver) download(fontURL, dst string) error {
	resp, err := r.HTTP.Get(fontURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("font download returned %s", resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
