// Command seeder fills a Cachearr history database with sample runs so the
// status API can be exercised without talking to Jackett or Real-Debrid.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mescon/Cachearr/internal/db"
	"github.com/mescon/Cachearr/internal/domain"
)

type sampleRun struct {
	ago     time.Duration
	status  domain.RunStatus
	seen    int
	titles  []string
	added   int
	runErr  string
	elapsed time.Duration
}

func main() {
	dbPath := flag.String("db", "./cachearr.db", "database to seed")
	flag.Parse()

	repo, err := db.NewRepository(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	fmt.Println("Seeding database...")

	runs := []sampleRun{
		{72 * time.Hour, domain.StatusCompleted, 48, []string{"Dune.Part.Two.2024.1080p", "Shogun.S01E01.1080p", "Civil.War.2024.2160p"}, 2, "", 40 * time.Second},
		{48 * time.Hour, domain.StatusEmpty, 0, nil, 0, "", time.Second},
		{24 * time.Hour, domain.StatusFailed, 0, nil, 0, "jackett login: HTTP 401", 2 * time.Second},
		{time.Hour, domain.StatusCompleted, 51, []string{"Fallout.S01E03.1080p", "Furiosa.2024.1080p"}, 1, "", 26 * time.Second},
	}

	for _, r := range runs {
		started := time.Now().Add(-r.ago)
		s := domain.RunSummary{
			RunID:     uuid.New().String(),
			StartedAt: started,
			Status:    domain.StatusRunning,
		}
		if err := repo.CreateRun(s); err != nil {
			log.Fatal(err)
		}

		for i, title := range r.titles {
			size := int64(2_000_000_000 + i*750_000_000)
			seeders := int64(40 - i*7)
			rec := domain.ProcessedRecord{Title: title, Size: &size, Seeders: &seeders}
			if i < r.added {
				rec.Added = true
				rec.InfoHash = domain.InfoHash(fmt.Sprintf("%040x", i+1))
			} else {
				rec.Error = "torrent is not cached on Real-Debrid"
			}
			if err := repo.SaveRecord(s.RunID, i, rec); err != nil {
				log.Fatal(err)
			}
		}

		finished := started.Add(r.elapsed)
		s.FinishedAt = &finished
		s.Status = r.status
		s.Seen = r.seen
		s.Matched = len(r.titles)
		s.Added = r.added
		s.Error = r.runErr
		if err := repo.FinishRun(s); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("Seeded %d runs into %s\n", len(runs), *dbPath)
}
