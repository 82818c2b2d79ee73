// Package main provides localization for the avplay CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Play local media files through a demux, decode and present pipeline": "ローカルのメディアファイルを分離・デコード・表示パイプラインで再生",

		// Runtime messages
		"Interrupted, shutting down...":   "中断されました。シャットダウン中...",
		"Played %s to %s in %s":           "%s を %s まで再生しました (所要時間 %s)",
		"Output saved to %s":              "出力を %s に保存しました",
		"Failed to save cover art: %s":    "カバーアートの保存に失敗しました: %s",
		"Metrics server failed: %s":       "メトリクスサーバーが停止しました: %s",
		"Summary saved to %s":             "サマリーを %s に保存しました",
		"Failed to write summary: %s":     "サマリーの書き込みに失敗しました: %s",
		"avplay version %s":               "avplay バージョン %s",
		"Duration: %s":                    "再生時間: %s",
		"No cover art found":              "カバーアートが見つかりません",
		"Cover art saved to %s":           "カバーアートを %s に保存しました",
		"Stream #%d: %s %s (%s), time base %d/%d": "ストリーム #%d: %s %s (%s), タイムベース %d/%d",

		// Summary content
		"Playback Summary": "再生サマリー",
		"Source":           "ソース",
		"Streams":          "ストリーム",
		"Playback":         "再生",
		"Frames":           "フレーム",
		"Errors":           "エラー",
		"Output":           "出力",
		"Item":             "項目",
		"Value":            "値",
		"Counter":          "カウンター",
		"Generated by":     "生成:",
		"Yes":              "あり",
		"No":               "なし",

		// Source section
		"File":      "ファイル",
		"Duration":  "長さ",
		"Cover Art": "カバーアート",

		// Streams section
		"Role":    "役割",
		"Codec":   "コーデック",
		"Decoder": "デコーダー",
		"Format":  "形式",
		"video":   "映像",
		"audio":   "音声",
		"cover":   "カバー",

		// Playback section
		"Master Clock":   "マスタークロック",
		"Start Position": "開始位置",
		"End Position":   "終了位置",
		"Wall Time":      "実時間",
		"Stop Reason":    "停止理由",
		"Loops":          "ループ回数",
		"Seeks":          "シーク回数",
		"ended":          "終端",
		"time-limit":     "時間制限",
		"cancelled":      "キャンセル",
		"failed":         "失敗",

		// Frames section
		"Packets Demuxed":           "読み出しパケット数",
		"Packets Discarded":         "破棄パケット数",
		"Demux Errors":              "読み出しエラー数",
		"Video Decoded / Presented": "映像 デコード / 表示",
		"Audio Decoded / Played":    "音声 デコード / 再生",
		"Dropped Frames":            "ドロップフレーム数",
		"Video Waits":               "映像待機回数",

		// Output section
		"Snapshots": "スナップショット",
		"Audio":     "音声",
	})
}
