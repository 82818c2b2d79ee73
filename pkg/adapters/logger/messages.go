package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Playing %s from %s":                     "%s を %s から再生します",
		"Playback stopped: %s":                   "再生を停止しました: %s",
		"Restarting playback from the beginning": "先頭から再生し直します",
		"Serving metrics on %s":                  "%s でメトリクスを公開中",

		// Pipeline
		"Opening %s":                                "%s を開いています",
		"Opened %s: duration %s, master stream %s":  "%s を開きました: 長さ %s, マスターストリーム %s",
		"Video stream %d: %s %dx%d, hardware %v":    "映像ストリーム %d: %s %dx%d, ハードウェア %v",
		"Audio stream %d: %s %d Hz, %d channels":    "音声ストリーム %d: %s %d Hz, %d チャンネル",
		"Pipeline tasks started":                    "パイプラインのタスクを開始しました",
		"Pipeline tasks stopped":                    "パイプラインのタスクを停止しました",
		"Seeked to %s, dropped %d queued items":     "%s へシークしました。キュー内の %d 件を破棄",
		"Reconfiguring %s converter for %s":         "%s 変換器を %s 向けに再構成中",

		// Demux task
		"Demux task started":            "読み出しタスクを開始しました",
		"Demux task stopped":            "読み出しタスクを停止しました",
		"End of input reached":          "入力の終端に達しました",
		"Cover image updated: %d bytes": "カバー画像を更新しました: %d バイト",

		// Decode task
		"Decode task started":           "デコードタスクを開始しました",
		"Decode task stopped":           "デコードタスクを停止しました",
		"Drained %d buffered %s frames": "バッファ内のフレーム %d 件 (%s) を取り出しました",

		// MP4 demuxer
		"Track %d: %s %s, %d samples":                   "トラック %d: %s %s, %d サンプル",
		"Skipping track %d: %s":                         "トラック %d をスキップします: %s",
		"Seek on track %d landed on sample %d (pts %d)": "トラック %d のシークはサンプル %d (pts %d) に着地しました",

		// Decoders
		"Started ffmpeg for %s stream %d (%s, hardware %v)": "%s ストリーム %d の ffmpeg を起動しました (%s, ハードウェア %v)",
		"Stream %d decodes %s with %s":                      "ストリーム %d は %s を %s でデコードします",
		"Drained ffmpeg for %s stream %d":                   "%s ストリーム %d の ffmpeg を出し切りました",

		// Warnings
		"Failed to read packet: %s":       "パケットの読み出しに失敗しました: %s",
		"Failed to transfer %s frame: %s": "%s フレームの転送に失敗しました: %s",
		"Failed to convert %s frame: %s":  "%s フレームの変換に失敗しました: %s",
		"Failed to enqueue audio: %s":     "音声のキュー投入に失敗しました: %s",
		"Failed to present frame: %s":     "フレームの表示に失敗しました: %s",
		"Failed to seek to %s: %s":        "%s へのシークに失敗しました: %s",
		"Failed to restart playback: %s":  "再生のやり直しに失敗しました: %s",
		"Hardware decoder unavailable for stream %d, using software: %s":             "ストリーム %d でハードウェアデコーダーを使えません。ソフトウェアを使用します: %s",
		"Hardware decoder failed on stream %d, replaying %d packets in software: %s": "ストリーム %d のハードウェアデコーダーが失敗しました。%d パケットをソフトウェアで再デコードします: %s",

		// Errors
		"Failed to open %s: %s":               "%s を開けませんでした: %s",
		"Stream failed: %s":                   "ストリームが停止しました: %s",
		"Pipeline task exited with error: %s": "パイプラインのタスクがエラーで終了しました: %s",
	})
}
