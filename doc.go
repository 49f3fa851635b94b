// Package learnbot is a conversational assistant that learns from what it is
// told.
//
// Each message is classified as a fact, a question, a preference or feedback.
// Verifiable facts and stated preferences are stored in a semantic knowledge
// store, questions are answered from the stored knowledge, and every reply is
// adapted to the user's preferred tone, verbosity and formality.
//
// Open assembles the pieces over one BadgerDB database:
//
//	bot, err := learnbot.Open("data/learnbot", learnbot.WithAIConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	defer bot.Close()
//
//	chat, err := bot.NewSession()
//	result := chat.Send(ctx, "The Earth orbits the Sun")
package learnbot
