package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/wallharvest/internal/matcher"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Manage the keywords matched against stored text",
}

var keywordsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import keywords from a YAML file",
	Long: `Import keywords from a YAML file. Re-importing a word updates it.

File format:
  keywords:
    - word: Bicycle
    - word: lost and found
      phrase: true

New keywords only apply to records saved after the import.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeywordsImport,
}

var keywordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keywords with their match counts",
	Args:  cobra.NoArgs,
	RunE:  runKeywordsList,
}

var keywordsDeleteCmd = &cobra.Command{
	Use:   "delete <word>...",
	Short: "Delete keywords and their matches",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeywordsDelete,
}

func init() {
	keywordsCmd.AddCommand(keywordsImportCmd)
	keywordsCmd.AddCommand(keywordsListCmd)
	keywordsCmd.AddCommand(keywordsDeleteCmd)
}

type keywordFile struct {
	Keywords []struct {
		Word   string `yaml:"word"`
		Phrase *bool  `yaml:"phrase"`
	} `yaml:"keywords"`
}

// parseKeywordFile decodes a keyword file. Entries that normalize to nothing
// are dropped and duplicates keep the first spelling.
func parseKeywordFile(data []byte) ([]models.Keyword, error) {
	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keyword file: %w", err)
	}

	seen := make(map[string]bool, len(f.Keywords))
	keywords := make([]models.Keyword, 0, len(f.Keywords))
	for _, entry := range f.Keywords {
		word := strings.TrimSpace(entry.Word)
		norm := matcher.Normalize(word)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true

		isPhrase := len(matcher.Tokens(word)) > 1
		if entry.Phrase != nil {
			isPhrase = *entry.Phrase
		}
		keywords = append(keywords, models.Keyword{
			ID:             norm,
			Word:           word,
			NormalizedWord: norm,
			IsPhrase:       isPhrase,
		})
	}
	return keywords, nil
}

func runKeywordsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read keyword file: %w", err)
	}
	keywords, err := parseKeywordFile(data)
	if err != nil {
		return err
	}

	for _, k := range keywords {
		if _, err := dbClient.UpsertKeyword(ctx, k); err != nil {
			return fmt.Errorf("import %q: %w", k.Word, err)
		}
	}

	fmt.Printf("Imported %d keyword(s)\n", len(keywords))
	return nil
}

func runKeywordsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	keywords, err := dbClient.ListKeywordCandidates(ctx)
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		fmt.Println("No keywords found")
		return nil
	}

	fmt.Printf("%-30s %-7s %s\n", "WORD", "PHRASE", "MATCHES")
	fmt.Println(strings.Repeat("-", 50))
	for _, k := range keywords {
		count, err := dbClient.CountMatches(ctx, k.ID)
		if err != nil {
			return err
		}
		phrase := ""
		if k.IsPhrase {
			phrase = "yes"
		}
		fmt.Printf("%-30s %-7s %d\n", k.Word, phrase, count)
	}
	return nil
}

func runKeywordsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	for _, word := range args {
		id := matcher.Normalize(word)
		deleted, err := dbClient.DeleteKeyword(ctx, id)
		if err != nil {
			return fmt.Errorf("delete %q: %w", word, err)
		}
		if !deleted {
			fmt.Printf("Keyword not found: %s\n", word)
			continue
		}
		fmt.Printf("Deleted keyword: %s\n", word)
	}
	return nil
}
