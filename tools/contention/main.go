package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/V4T54L/barber-pos/internal/adapter/gateway"
	"github.com/V4T54L/barber-pos/internal/domain"
	"github.com/V4T54L/barber-pos/internal/pkg/auth"
)

// contention sends the same stock update from many workers at once, all
// carrying the version they read. Exactly one of each round should win.
func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Service base URL")
	token := flag.String("token", os.Getenv("API_TOKEN"), "Bearer token of a tenant user")
	productID := flag.String("product", "", "Product to contend on (default: first product)")
	concurrency := flag.Int("c", 10, "Number of concurrent workers per round")
	rounds := flag.Int("rounds", 5, "Number of rounds")
	rps := flag.Float64("rps", 0, "Requests per second limit per worker (0 = unlimited)")
	flag.Parse()

	sess, err := auth.SessionFromToken(*token)
	if err != nil {
		log.Fatalf("invalid token: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	newClient := func() *gateway.Client {
		return gateway.NewClient(gateway.Config{
			BaseURL:     *serverURL,
			Token:       sess.Token,
			BusinessID:  sess.BusinessID,
			Timeout:     5 * time.Second,
			RequestRate: *rps,
		}, logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reader := newClient()
	log.Printf("Contending on %s as %s, %d workers x %d rounds", *serverURL, sess.BusinessID, *concurrency, *rounds)

	var totalWins, totalConflicts, totalErrors atomic.Int64
	for round := 1; round <= *rounds; round++ {
		product, err := pickProduct(ctx, reader, *productID)
		if err != nil {
			log.Fatalf("failed to read product: %v", err)
		}

		var wg sync.WaitGroup
		var wins, conflicts atomic.Int64
		start := make(chan struct{})
		for i := 0; i < *concurrency; i++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				client := newClient()
				<-start
				stock := product.Stock + workerID + 1
				_, err := client.UpdateProductStock(ctx, product.ID, stock, product.Version)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, domain.ErrVersionConflict):
					conflicts.Add(1)
				default:
					totalErrors.Add(1)
					log.Printf("worker %d: %v", workerID, err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		log.Printf("Round %d on %s@v%d: %d won, %d conflicted", round, product.ID, product.Version, wins.Load(), conflicts.Load())
		if wins.Load() != 1 {
			log.Printf("Round %d: expected exactly one winner", round)
		}
		totalWins.Add(wins.Load())
		totalConflicts.Add(conflicts.Load())
	}

	log.Println("Contention test finished.")
	log.Printf("Winners: %d (expected %d)", totalWins.Load(), *rounds)
	log.Printf("Conflicts: %d", totalConflicts.Load())
	log.Printf("Errors: %d", totalErrors.Load())
	if totalWins.Load() != int64(*rounds) || totalErrors.Load() > 0 {
		os.Exit(1)
	}
}

func pickProduct(ctx context.Context, c *gateway.Client, id string) (domain.Product, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if id == "" || p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, errors.New("product not found")
}
