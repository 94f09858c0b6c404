package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/DRSN-tech/ml-service/pkg/logger"
	"github.com/jimlawless/whereami"
)

// EmbeddingSource определяет хранилище, из которого читаются embedding-векторы.
const (
	EmbeddingSourcePgvector = "pgvector"
	EmbeddingSourceQdrant   = "qdrant"
)

type Config struct {
	Tcp       *TCPConfig
	Http      *HTTPConfig
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Kafka     *KafkaCfg
	Reducer   *ReducerCfg
	Clusterer *ClustererCfg
	Topics    *TopicsCfg
	Recommend *RecommendCfg

	// EmbeddingSource — pgvector (общая БД с services_LLM) или qdrant
	EmbeddingSource string
}

type TCPConfig struct {
	Host        string
	Port        string
	NetworkMode string
	ReadTimeout time.Duration
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	Port           int
	Host           string
	ApiKey         string
	CollectionName string
	UseTLS         bool
	VectorSize     uint64
}

type RedisCfg struct {
	Addr              string
	Password          string
	User              string
	DB                int
	MaxRetries        int
	DialTimeout       time.Duration
	Timeout           time.Duration
	RecommendationTTL time.Duration
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	Enabled           bool
}

// ReducerCfg — параметры снижения размерности (пресеты clustering/visualization).
type ReducerCfg struct {
	NComponentsCluster int
	NComponentsViz     int
	NNeighbors         int
	Metric             string
	MinDist            float64
	RandomState        int64
}

// ClustererCfg — параметры плотностной кластеризации.
type ClustererCfg struct {
	MinClusterSize         int
	MinSamples             int
	ClusterSelectionMethod string
}

type TopicsCfg struct {
	TopNWords              int
	Language               string
	CalculateProbabilities bool
}

type RecommendCfg struct {
	TopK                int
	SimilarityThreshold float64
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	tcp, err := loadTCPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	reducer, err := loadReducerCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	clusterer, err := loadClustererCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	source := getEnvOrDefault("EMBEDDING_SOURCE", EmbeddingSourcePgvector)
	if source != EmbeddingSourcePgvector && source != EmbeddingSourceQdrant {
		return nil, e.Wrap(source, e.ErrUnknownSource)
	}

	return &Config{
		Tcp:             tcp,
		Http:            http,
		Db:              db,
		Qdrant:          qdrant,
		Redis:           redis,
		Kafka:           kafka,
		Reducer:         reducer,
		Clusterer:       clusterer,
		Topics:          loadTopicsCfg(),
		Recommend:       loadRecommendCfg(),
		EmbeddingSource: source,
	}, nil
}

func loadTCPConfig(log logger.Logger) (*TCPConfig, error) {
	const (
		defaultHost        = "0.0.0.0"
		defaultPort        = "5555"
		defaultNetworkMode = "tcp"
		defaultReadTimeout = 30 * time.Second
	)

	readTimeout, err := parseDurationEnv("TCP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid TCP_READ_TIMEOUT")
		return nil, err
	}

	return &TCPConfig{
		Host:        getEnvOrDefault("TCP_SERVER_HOST", defaultHost),
		Port:        getEnvOrDefault("TCP_SERVER_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("TCP_NETWORK_MODE", defaultNetworkMode),
		ReadTimeout: readTimeout,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8001"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("ML_SERVICE_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "384"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Host:           getEnv("QDRANT_HOST"),
		Port:           port,
		ApiKey:         getEnv("QDRANT__SERVICE__API_KEY"),
		CollectionName: getEnv("COLLECTION_NAME"),
		UseTLS:         useTLS,
		VectorSize:     vectorSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultRecTTL       = 1 * time.Hour
	)

	dbStr := getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB))
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	recTTL, err := parseDurationEnv("RECOMMENDATION_TTL", defaultRecTTL)
	if err != nil {
		log.Errorf(err, "invalid RECOMMENDATION_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:              getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:          getEnv("REDIS_PASSWORD"),
		User:              getEnv("REDIS_USER"),
		DB:                db,
		MaxRetries:        maxRetries,
		DialTimeout:       dialTimeout,
		Timeout:           timeout,
		RecommendationTTL: recTTL,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultTopic             = "ml.analysis.events"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		// Kafka необязателен: без брокеров события анализа просто не публикуются
		return &KafkaCfg{Enabled: false}, nil
	}
	brokers := strings.Split(brokerStr, ",")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		Enabled:           true,
	}, nil
}

func loadReducerCfg() (*ReducerCfg, error) {
	const (
		defaultNComponentsCluster = 5
		defaultNComponentsViz     = 2
		defaultNNeighbors         = 15
		defaultMetric             = "cosine"
		defaultRandomState        = 42
	)

	nCluster, err := parseIntEnv("UMAP_N_COMPONENTS_CLUSTER", defaultNComponentsCluster)
	if err != nil {
		return nil, e.Wrap("UMAP_N_COMPONENTS_CLUSTER", err)
	}

	nViz, err := parseIntEnv("UMAP_N_COMPONENTS_VIZ", defaultNComponentsViz)
	if err != nil {
		return nil, e.Wrap("UMAP_N_COMPONENTS_VIZ", err)
	}

	nNeighbors, err := parseIntEnv("UMAP_N_NEIGHBORS", defaultNNeighbors)
	if err != nil {
		return nil, e.Wrap("UMAP_N_NEIGHBORS", err)
	}

	minDist := 0.1
	if v := os.Getenv("UMAP_MIN_DIST"); v != "" {
		minDist, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, e.Wrap("UMAP_MIN_DIST", e.ErrIncorrectEnvVariable)
		}
	}

	return &ReducerCfg{
		NComponentsCluster: nCluster,
		NComponentsViz:     nViz,
		NNeighbors:         nNeighbors,
		Metric:             getEnvOrDefault("UMAP_METRIC", defaultMetric),
		MinDist:            minDist,
		RandomState:        defaultRandomState,
	}, nil
}

func loadClustererCfg() (*ClustererCfg, error) {
	const (
		defaultMinClusterSize = 3
		defaultMinSamples     = 2
		defaultMethod         = "eom"
	)

	minClusterSize, err := parseIntEnv("MIN_CLUSTER_SIZE", defaultMinClusterSize)
	if err != nil {
		return nil, e.Wrap("MIN_CLUSTER_SIZE", err)
	}

	minSamples, err := parseIntEnv("MIN_SAMPLES", defaultMinSamples)
	if err != nil {
		return nil, e.Wrap("MIN_SAMPLES", err)
	}

	return &ClustererCfg{
		MinClusterSize:         minClusterSize,
		MinSamples:             minSamples,
		ClusterSelectionMethod: getEnvOrDefault("CLUSTER_SELECTION_METHOD", defaultMethod),
	}, nil
}

func loadTopicsCfg() *TopicsCfg {
	const (
		defaultTopNWords = 10
		defaultLanguage  = "spanish"
	)

	topN, err := parseIntEnv("TOP_N_WORDS", defaultTopNWords)
	if err != nil {
		topN = defaultTopNWords
	}

	calcProbs, err := strconv.ParseBool(getEnvOrDefault("CALCULATE_PROBABILITIES", "false"))
	if err != nil {
		calcProbs = false
	}

	return &TopicsCfg{
		TopNWords:              topN,
		Language:               getEnvOrDefault("TOPIC_LANGUAGE", defaultLanguage),
		CalculateProbabilities: calcProbs,
	}
}

func loadRecommendCfg() *RecommendCfg {
	const defaultTopK = 5

	topK, err := parseIntEnv("TOP_K_RECOMMENDATIONS", defaultTopK)
	if err != nil {
		topK = defaultTopK
	}

	threshold := 0.7
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = parsed
		}
	}

	return &RecommendCfg{
		TopK:                topK,
		SimilarityThreshold: threshold,
	}
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
