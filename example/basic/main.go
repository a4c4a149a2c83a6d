package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/patterner"
	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
)

func samplePatterns() []*model.Pattern {
	return []*model.Pattern{
		{
			Name:        "Factory Method",
			Description: "Defines an interface for creating an object, but lets subclasses decide which class to instantiate.",
			Category:    "creational",
			Tags:        []string{"creation", "polymorphism"},
		},
		{
			Name:        "Abstract Factory",
			Description: "Provides an interface for creating families of related objects without specifying their concrete classes.",
			Category:    "creational",
			Tags:        []string{"creation", "families"},
		},
		{
			Name:        "Observer",
			Description: "Defines a one-to-many dependency so that when one object changes state, all its dependents are notified.",
			Category:    "behavioral",
			Tags:        []string{"events", "decoupling"},
		},
		{
			Name:        "Strategy",
			Description: "Defines a family of algorithms, encapsulates each one, and makes them interchangeable at runtime.",
			Category:    "behavioral",
			Tags:        []string{"algorithms", "decoupling"},
		},
		{
			Name:        "Singleton",
			Description: "Ensures a class has only one instance and provides a global point of access to it.",
			Category:    "creational",
			Tags:        []string{"instance"},
		},
	}
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := helper.TestContainerConfiguration(dbPort)

	p, err := patterner.NewPatterner(dbConfig, nil, 384)
	if err != nil {
		log.Fatalf("Failed to create patterner: %v", err)
	}
	defer p.Close()

	// Set up the default embedding pipeline (all-MiniLM-L6-v2)
	if err := p.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	ctx := context.Background()

	fmt.Println("Indexing patterns...")
	patterns := samplePatterns()
	indexed, err := p.IndexPatterns(ctx, patterns)
	if err != nil {
		log.Fatalf("Failed to index patterns: %v", err)
	}
	fmt.Printf("Indexed %d patterns\n", indexed)

	// Fused search with automatic query analysis
	queryText := "factory pattern for object creation"
	fmt.Printf("\nQuerying: %s\n", queryText)

	response, err := p.Search(ctx, queryText, nil)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nStrategy: %s (dense %.2f / sparse %.2f)\n",
		response.Analysis.RecommendedStrategy,
		response.Analysis.DenseAlpha,
		response.Analysis.SparseAlpha)
	fmt.Printf("Found %d results:\n", len(response.Results))
	for i, result := range response.Results {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Pattern: %s\n", result.PatternID)
		fmt.Printf("Score: %.4f\n", result.FinalScore)
		fmt.Printf("Matched by: %v\n", result.MatchTypes)
		for _, reason := range result.Reasons {
			fmt.Printf("  %s\n", reason)
		}
	}

	// Explore the pattern graph from the best hit
	if len(response.Results) > 0 {
		startID := response.Results[0].PatternID

		fmt.Printf("\nReasoning chains from %s:\n", startID)
		chains, err := p.MultiHopReasoning(ctx, startID, 2)
		if err != nil {
			log.Fatalf("Failed to run multi-hop reasoning: %v", err)
		}
		for _, chain := range chains {
			fmt.Printf("  score %.4f over %d hops:", chain.FinalScore, chain.Hops)
			for _, step := range chain.Steps {
				fmt.Printf(" -> %s (%.2f)", step.Name, step.Confidence)
			}
			fmt.Println()
		}
	}

	fmt.Println("\nBasic example completed successfully!")
}
