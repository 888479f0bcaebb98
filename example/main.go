package main

import (
	"context"
	"fmt"

	"github.com/kebukeYi/TrainRecord"
	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/cursor"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/metadata"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/kebukeYi/TrainRecord/text"
)

func main() {
	// 未指定工作目录且 InMemory 时数据只保存在内存中;
	cfg := TrainRecord.DefaultConfig()
	cfg.Indexes = []*metadata.Index{{
		Name:           "review_idx",
		Type:           common.IndexTypeText,
		TextField:      "review",
		GroupingFields: []string{"product"},
		Options:        map[string]string{common.TextTokenizerNameOption: "english"},
	}}
	db, err := TrainRecord.Open(cfg)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = db.Close()
	}()

	ctx := context.Background()
	reviews := []string{
		"The battery life is great and the screen is sharp",
		"Great screen, battery drains fast",
		"Screen cracked after a week",
		"battery life great, would buy again",
	}
	for i, review := range reviews {
		rec := model.NewRecord(model.TupleOf(int64(i+1)), map[string]interface{}{
			"product": "phone",
			"review":  review,
		})
		if err := db.SaveRecord(ctx, rec); err != nil {
			panic(err)
		}
	}

	queries := []*text.Comparison{
		text.All("battery screen"),
		text.Any("cracked drains"),
		text.Phrase("battery life great"),
		text.AllWithin("great battery", 1),
		text.Prefix("scr"),
	}
	for _, c := range queries {
		filters := []text.Filter{text.FieldEquals("product", "phone"), text.FieldText("review", c)}
		// 每页一条, 用续点翻页;
		var cont []byte
		var got []model.Tuple
		for {
			page, err := db.TextQueryPage(ctx, "review_idx", filters, cont, interfaces.ForwardScan.WithLimit(1))
			if err != nil {
				panic(err)
			}
			got = append(got, page.PrimaryKeys...)
			if page.Reason.IsSourceExhausted() {
				break
			}
			cont = page.Continuation
		}
		fmt.Printf("%s => %v\n", c, got)
	}

	// 查看执行计划;
	c, _, err := db.TextQuery(ctx, "review_idx", []text.Filter{
		text.FieldEquals("product", "phone"),
		text.FieldText("review", text.Phrase("battery life")),
	}, nil, interfaces.ForwardScan.WithLimit(10))
	if err != nil {
		panic(err)
	}
	fmt.Print(cursor.Explain(c))
	_ = c.Close()
}
