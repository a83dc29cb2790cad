package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// Submission mirrors the consumer's wire format: a user identity plus
// raw play telemetry
type Submission struct {
	UserID         string  `json:"user_id"`
	GameID         string  `json:"game_id"`
	Score          float64 `json:"score,omitempty"`
	CorrectAnswers int     `json:"correct_answers,omitempty"`
	TotalQuestions int     `json:"total_questions,omitempty"`
	Attempts       int     `json:"attempts,omitempty"`
	TimeTaken      float64 `json:"time_taken,omitempty"`
	TimeBudget     float64 `json:"time_budget,omitempty"`
	Difficulty     string  `json:"difficulty,omitempty"`
}

var userPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

// The game IDs must exist in the games table; these match the seed set
var gameIDs = []string{
	"speed-sprint", "logic-grid", "puzzle-cascade", "memory-match", "reflex-rush",
}

func getUserName(idx int) string {
	prefixIdx := idx % len(userPrefixes)
	suffix := idx/len(userPrefixes) + 1
	return fmt.Sprintf("%s%d", userPrefixes[prefixIdx], suffix)
}

// randomTelemetry produces a plausible raw-telemetry payload for one play
func randomTelemetry(userIdx int) Submission {
	budget := float64(rand.Intn(120) + 30)
	total := rand.Intn(15) + 5
	return Submission{
		UserID:         getUserName(userIdx),
		GameID:         gameIDs[rand.Intn(len(gameIDs))],
		Score:          float64(rand.Intn(100)),
		CorrectAnswers: rand.Intn(total + 1),
		TotalQuestions: total,
		Attempts:       rand.Intn(4) + 1,
		TimeTaken:      budget * (0.2 + rand.Float64()*0.9),
		TimeBudget:     budget,
	}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "score-submissions", "Kafka topic")
	totalUsers := flag.Int("users", 1000, "Total number of users to simulate")
	updatesPerSecond := flag.Int("rate", 100, "Submissions per second")
	batchSize := flag.Int("batch", 10, "Batch size for initial population")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	initialOnly := flag.Bool("initial-only", false, "Only send the initial burst, no continuous updates")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🚀 Score Submission Load Generator")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Total Users:      %d\n", *totalUsers)
	fmt.Printf("  Submissions/sec:  %d\n", *updatesPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper
	sendMessage := func(submission Submission) {
		data, err := json.Marshal(submission)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(submission.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	// Send one play per user in batches
	fmt.Printf("Sending initial plays for %d users...\n", *totalUsers)
	for i := 0; i < *totalUsers; i += *batchSize {
		end := i + *batchSize
		if end > *totalUsers {
			end = *totalUsers
		}

		for j := i; j < end; j++ {
			sendMessage(randomTelemetry(j))
		}

		progress := float64(end) / float64(*totalUsers) * 100
		fmt.Printf("\r  Progress: %d/%d users (%.1f%%)", end, *totalUsers, progress)
	}
	fmt.Printf("\n✓ Sent initial plays for %d users\n\n", *totalUsers)

	if *initialOnly {
		fmt.Println("Initial-only mode: Exiting after the initial burst")
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
		return
	}

	// Start continuous submissions
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Starting continuous submissions (%d/sec)\n", *updatesPerSecond)
	fmt.Println("Active users have 70% chance to submit (to create board movement)")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*updatesPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var updateCount int64

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			close(done)
			producer.AsyncClose()
			wg.Wait()
			fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				close(done)
				producer.AsyncClose()
				wg.Wait()
				fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
				return
			}

			// 70% chance to pick from the 20 most active users
			var userIdx int
			if rand.Intn(100) < 70 {
				userIdx = rand.Intn(20)
			} else {
				userIdx = rand.Intn(*totalUsers-20) + 20
			}

			sendMessage(randomTelemetry(userIdx))
			atomic.AddInt64(&updateCount, 1)

		case <-statsTicker.C:
			updates := atomic.LoadInt64(&updateCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Submissions: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				updates,
				success,
				errors,
			)
		}
	}
}
